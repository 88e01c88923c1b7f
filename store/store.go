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

// Package store defines the local store contract of 6.3: the daemon's
// on-disk cache this core treats as an external collaborator, the way
// identity/managers/identifier.go only ever calls into identity.Manager
// and identifier.Identifier rather than implementing session storage
// itself.
package store

import (
	"context"

	"gopkg.in/ldap.v2"
)

// Store is the local store contract of 6.3: attribute reads, the
// directory-to-store persist path for enumeration and lookups, and
// password caching.
type Store interface {
	// GetUserAttr implements 6.3(a): get_user_attr(user, ["UPN"]).
	GetUserAttr(ctx context.Context, user string, attr string) ([]string, error)

	// PersistUsers and PersistGroups implement 6.3(b)'s search-and-persist
	// write path. They return the newest modification timestamp observed
	// among entries, or "" if none of the entries carried one.
	PersistUsers(ctx context.Context, entries []*ldap.Entry, modstampAttr string) (maxModstamp string, err error)
	PersistGroups(ctx context.Context, entries []*ldap.Entry, modstampAttr string) (maxModstamp string, err error)

	// PersistInitgroups records the group memberships resolved for user.
	PersistInitgroups(ctx context.Context, user string, groupDNs []string) error

	// CachePassword implements 6.3(c): a write recording a salted hash of
	// password for user. The call returns once the write has finished.
	CachePassword(ctx context.Context, user string, password []byte) error
}
