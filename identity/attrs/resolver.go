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

// Package attrs implements the attribute-map resolver (C2, 4.2), modeled
// directly on identifier/backends/ldap.go's ldapAttributeMapping.attributes():
// the returned list always starts with objectClass, followed by the mapped
// attribute names, skipping unmapped slots.
package attrs

import (
	"github.com/satori/go.uuid"
	"gopkg.in/ldap.v2"

	"stash.kopano.io/kc/ssspd/config"
)

// Map is the server-side attribute list a lookup needs for one entity kind.
type Map struct {
	ObjectClass string
	Name        string
	IDAttr      string
	Modstamp    string
	Extra       map[string]string

	// UUIDAttr, if set, is a server-side attribute whose raw value is a
	// binary RFC 4122 UUID rather than a printable string.
	UUIDAttr string
}

// FromConfig builds a Map from a config.AttributeMap.
func FromConfig(m config.AttributeMap) Map {
	return Map{
		ObjectClass: m.ObjectClass,
		Name:        m.Name,
		IDAttr:      m.IDAttr,
		Modstamp:    m.Modstamp,
		Extra:       m.Extra,
		UUIDAttr:    m.UUIDAttr,
	}
}

// objectClassAttribute is the literal attribute descriptor always requested
// first, per 4.2.
const objectClassAttribute = "objectClass"

// Attributes returns the server-side attribute list to request: objectClass
// first, then every non-empty mapped attribute name. Null/unmapped slots
// (empty strings) are skipped.
func (m Map) Attributes() []string {
	out := make([]string, 0, len(m.Extra)+4)
	out = append(out, objectClassAttribute)

	for _, v := range []string{m.Name, m.IDAttr, m.Modstamp} {
		if v != "" {
			out = append(out, v)
		}
	}
	for _, v := range m.Extra {
		if v != "" {
			out = append(out, v)
		}
	}
	if m.UUIDAttr != "" {
		out = append(out, m.UUIDAttr)
	}

	return out
}

// NormalizeUUIDAttribute rewrites m.UUIDAttr's raw binary value into its
// canonical RFC 4122 string form on every entry, in place, the way
// identifier/backends/ldap.go's ldapUser builder decodes
// AttributeValueTypeUUID attributes with uuid.FromBytes before handing
// values to the caller. Entries lacking the attribute, or whose value does
// not decode as a UUID, are left untouched.
func (m Map) NormalizeUUIDAttribute(entries []*ldap.Entry) {
	if m.UUIDAttr == "" {
		return
	}
	for _, e := range entries {
		raw := e.GetRawAttributeValue(m.UUIDAttr)
		if len(raw) == 0 {
			continue
		}
		decoded, err := uuid.FromBytes(raw)
		if err != nil {
			continue
		}
		for _, a := range e.Attributes {
			if a.Name == m.UUIDAttr {
				a.Values = []string{decoded.String()}
				break
			}
		}
	}
}
