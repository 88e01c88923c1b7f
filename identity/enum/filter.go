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

// Package enum implements the Enumeration scheduler (C5, 4.5), grounded on
// original_source's server/providers/ldap/ldap_id.c enum_users_send() and
// its watermark + inequality trick for delta enumeration.
package enum

import (
	"fmt"

	"stash.kopano.io/kc/ssspd/identity/attrs"
)

// BuildFilter constructs the enumeration filter for one phase: a full
// enumeration filter when watermark is unset, otherwise a delta filter
// expressing "strictly greater than watermark" as (modstamp>=W)(!(modstamp=W))
// because LDAP has no strict-greater-than comparator (4.5 step 2).
func BuildFilter(m attrs.Map, watermark string) string {
	if watermark == "" {
		return fmt.Sprintf("(&(%s=*)(objectclass=%s))", m.Name, m.ObjectClass)
	}
	return fmt.Sprintf("(&(%s=*)(objectclass=%s)(%s>=%s)(!(%s=%s)))",
		m.Name, m.ObjectClass, m.Modstamp, watermark, m.Modstamp, watermark)
}
