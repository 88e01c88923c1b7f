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

package store

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/ldap.v2"
)

// MemStore is a reference, in-memory Store used by this core's own tests
// and by a development deployment without a real local cache daemon. It is
// not meant for production: the real local store schema is out of scope
// per 1's Non-goals.
type MemStore struct {
	mutex sync.Mutex

	users  map[string]map[string][]string // DN or login -> attr -> values
	groups map[string][]string            // group DN -> member DNs
	hashes map[string][]byte              // user -> bcrypt hash
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]map[string][]string),
		groups: make(map[string][]string),
		hashes: make(map[string][]byte),
	}
}

// SetUserAttr is a test helper seeding an attribute for a user record.
func (s *MemStore) SetUserAttr(user, attr string, values []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rec, ok := s.users[user]
	if !ok {
		rec = make(map[string][]string)
		s.users[user] = rec
	}
	rec[attr] = values
}

// GetUserAttr implements Store.
func (s *MemStore) GetUserAttr(ctx context.Context, user string, attr string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rec, ok := s.users[user]
	if !ok {
		return nil, nil
	}
	return rec[attr], nil
}

// PersistUsers implements Store by recording every mapped attribute and
// returning the newest modstampAttr value observed.
func (s *MemStore) PersistUsers(ctx context.Context, entries []*ldap.Entry, modstampAttr string) (string, error) {
	return s.persist(entries, modstampAttr)
}

// PersistGroups implements Store the same way as PersistUsers; this
// reference store does not distinguish the two namespaces beyond DN.
func (s *MemStore) PersistGroups(ctx context.Context, entries []*ldap.Entry, modstampAttr string) (string, error) {
	return s.persist(entries, modstampAttr)
}

func (s *MemStore) persist(entries []*ldap.Entry, modstampAttr string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var max string
	for _, e := range entries {
		rec := make(map[string][]string)
		for _, a := range e.Attributes {
			rec[a.Name] = a.Values
		}
		s.users[e.DN] = rec

		if modstampAttr == "" {
			continue
		}
		v := e.GetAttributeValue(modstampAttr)
		if v != "" && v > max {
			max = v
		}
	}
	return max, nil
}

// PersistInitgroups implements Store.
func (s *MemStore) PersistInitgroups(ctx context.Context, user string, groupDNs []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.groups[user] = groupDNs
	return nil
}

// CachePassword implements Store, hashing with bcrypt the way a real local
// store would salt-and-hash the offline auth password cache entry of 4.8.
func (s *MemStore) CachePassword(ctx context.Context, user string, password []byte) error {
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.hashes[user] = hash
	return nil
}

// VerifyCachedPassword is a test helper checking a cached password hash.
func (s *MemStore) VerifyCachedPassword(user string, password []byte) bool {
	s.mutex.Lock()
	hash, ok := s.hashes[user]
	s.mutex.Unlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, password) == nil
}
