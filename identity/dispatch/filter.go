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

// Package dispatch implements the ID request dispatcher (C4, 4.4), routing
// {user, group, initgroups} lookups and building the server-side filter,
// modeled on identifier/backends/ldap.go's searchFilter/getFilter
// construction (b.searchFilter = "(&(%s)(%s=%%s))").
package dispatch

import (
	"fmt"
	"strings"

	"stash.kopano.io/kc/ssspd/identity/attrs"
)

// BuildFilter constructs the server-side search filter for a USER or GROUP
// lookup by name or by numeric id, per 4.4 step 3.
func BuildFilter(m attrs.Map, byIDNum bool, value string) string {
	attr := m.Name
	if byIDNum {
		attr = m.IDAttr
	}
	return fmt.Sprintf("(&(%s=%s)(objectclass=%s))", attr, escapeFilterValue(value), m.ObjectClass)
}

// escapeFilterValue escapes the handful of characters RFC 4515 requires
// escaping in an LDAP search filter value.
func escapeFilterValue(v string) string {
	r := strings.NewReplacer(
		`\`, `\5c`,
		`*`, `\2a`,
		`(`, `\28`,
		`)`, `\29`,
		"\x00", `\00`,
	)
	return r.Replace(v)
}
