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

package ssspd

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	ssspdconfig "stash.kopano.io/kc/ssspd/config"
	"stash.kopano.io/kc/ssspd/store"
)

func testConfig() *ssspdconfig.Config {
	return &ssspdconfig.Config{
		LDAPURI:  "ldap://directory.example.com",
		LDAPBase: "dc=example,dc=com",
		Domain: ssspdconfig.Domain{
			Name: "default",
			UserMap: ssspdconfig.AttributeMap{
				ObjectClass: "posixAccount",
				Name:        "uid",
				IDAttr:      "uidNumber",
				Modstamp:    "modifyTimestamp",
			},
			GroupMap: ssspdconfig.AttributeMap{
				ObjectClass: "posixGroup",
				Name:        "cn",
				IDAttr:      "gidNumber",
				Modstamp:    "modifyTimestamp",
			},
			OfflineTimeout:     60,
			EnumRefreshTimeout: 600,
		},
		Logger: logrus.New(),
	}
}

func TestNewContextParsesLDAPURI(t *testing.T) {
	c, err := NewContext(testConfig(), store.NewMemStore(), nil)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	if c.Scheduler != nil {
		t.Errorf("Scheduler should be nil when enumerate=false")
	}
}

func TestNewContextRejectsInvalidURI(t *testing.T) {
	cfg := testConfig()
	cfg.LDAPURI = "://bad"
	if _, err := NewContext(cfg, store.NewMemStore(), nil); err == nil {
		t.Errorf("NewContext() with an invalid ldap_uri did not error")
	}
}

func TestContextDispatchCheckOnline(t *testing.T) {
	c, err := NewContext(testConfig(), store.NewMemStore(), nil)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}

	var status Status
	req := NewRequest(KindCheckOnline, func(r *Request, s Status, errMsg string) {
		status = s
	})
	c.Dispatch(context.Background(), req)

	if status != StatusOK {
		t.Errorf("status = %v, want StatusOK for an online context", status)
	}

	c.Online.MarkOffline()
	req2 := NewRequest(KindCheckOnline, func(r *Request, s Status, errMsg string) {
		status = s
	})
	c.Dispatch(context.Background(), req2)
	if status != StatusRetryLater {
		t.Errorf("status = %v, want StatusRetryLater once offline", status)
	}
}

func TestContextDispatchUnknownKind(t *testing.T) {
	c, err := NewContext(testConfig(), store.NewMemStore(), nil)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}

	var status Status
	req := NewRequest(Kind(99), func(r *Request, s Status, errMsg string) {
		status = s
	})
	c.Dispatch(context.Background(), req)

	if status != StatusInvalidRequest {
		t.Errorf("status = %v, want StatusInvalidRequest for an unknown kind", status)
	}
}
