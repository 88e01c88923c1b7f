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

package attrs

import "testing"

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func TestAttributesStartsWithObjectClass(t *testing.T) {
	m := Map{Name: "uid", IDAttr: "uidNumber", Modstamp: "modifyTimestamp"}
	got := m.Attributes()
	if len(got) == 0 || got[0] != objectClassAttribute {
		t.Fatalf("Attributes() = %v, want first entry %q", got, objectClassAttribute)
	}
}

func TestAttributesSkipsUnmappedSlots(t *testing.T) {
	m := Map{Name: "uid"}
	got := m.Attributes()
	if len(got) != 2 {
		t.Fatalf("Attributes() = %v, want exactly objectClass+name", got)
	}
	if !contains(got, "uid") {
		t.Fatalf("Attributes() = %v, missing mapped name attribute", got)
	}
}

func TestAttributesIncludesExtra(t *testing.T) {
	m := Map{Name: "uid", Extra: map[string]string{"mail": "mail"}}
	got := m.Attributes()
	if !contains(got, "mail") {
		t.Fatalf("Attributes() = %v, missing extra mapped attribute", got)
	}
}
