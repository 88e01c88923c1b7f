/*
 * Copyright 2017 Kopano and its licensors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License, version 3,
 * as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package directory implements the Connection manager (C3, 4.3): the
// at-most-one shared Directory Session per Provider Context (3), grounded
// on identifier/backends/ldap.go's connect()/searchUsername()/getUser().
package directory

import (
	"gopkg.in/ldap.v2"
)

// Session is the Directory Session entity of 3: at most one exists per
// Provider Context, created on demand and destroyed when invalidated, at
// shutdown, or on fatal I/O error.
type Session struct {
	conn      *ldap.Conn
	connected bool
	bindDN    string
}

// Connected reports whether the session is usable for searches. An
// unbound or torn-down session is never exposed to callers (3's
// invariant).
func (s *Session) Connected() bool {
	return s != nil && s.connected
}

// Conn returns the underlying transport handle for use by the dispatcher
// and enumeration scheduler.
func (s *Session) Conn() *ldap.Conn {
	return s.conn
}

// Invalidate marks the session unusable and releases the transport. The
// connection manager drops an invalidated session before reconnecting.
func (s *Session) Invalidate() {
	if s == nil {
		return
	}
	s.connected = false
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
