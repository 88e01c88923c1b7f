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

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	ssspd "stash.kopano.io/kc/ssspd/identity"
	"stash.kopano.io/kc/ssspd/identity/attrs"
	"stash.kopano.io/kc/ssspd/identity/directory"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/store"
)

func newTestDispatcher() *Dispatcher {
	return &Dispatcher{
		Online:   onlinestate.New(300 * time.Second),
		Conn:     directory.NewManager("127.0.0.1:1", false, nil, "", "", time.Second, logrus.New()),
		Store:    store.NewMemStore(),
		Logger:   logrus.New(),
		BaseDN:   "dc=example,dc=com",
		UserMap:  attrs.Map{ObjectClass: "posixAccount", Name: "uid", IDAttr: "uidNumber", Modstamp: "modifyTimestamp"},
		GroupMap: attrs.Map{ObjectClass: "posixGroup", Name: "cn", IDAttr: "gidNumber", Modstamp: "modifyTimestamp"},
	}
}

func TestHandleAccountInfoOfflineShortCircuit(t *testing.T) {
	d := newTestDispatcher()
	d.Online.MarkOffline()

	var gotStatus ssspd.Status
	var gotMsg string
	req := ssspd.NewRequest(ssspd.KindAccountInfo, func(r *ssspd.Request, status ssspd.Status, msg string) {
		gotStatus, gotMsg = status, msg
	})
	req.AccountInfo = &ssspd.AccountInfoPayload{EntryType: ssspd.EntryTypeUser, FilterType: ssspd.FilterTypeName, Value: "alice"}

	d.HandleAccountInfo(context.Background(), req)

	if gotStatus != ssspd.StatusRetryLater {
		t.Errorf("status = %v, want RetryLater", gotStatus)
	}
	if gotMsg != "Offline" {
		t.Errorf("message = %q, want %q", gotMsg, "Offline")
	}
}

func TestHandleAccountInfoWildcardNoop(t *testing.T) {
	d := newTestDispatcher()

	var gotStatus ssspd.Status
	req := ssspd.NewRequest(ssspd.KindAccountInfo, func(r *ssspd.Request, status ssspd.Status, msg string) {
		gotStatus = status
	})
	req.AccountInfo = &ssspd.AccountInfoPayload{EntryType: ssspd.EntryTypeUser, FilterType: ssspd.FilterTypeName, Value: "*"}

	d.HandleAccountInfo(context.Background(), req)

	if gotStatus != ssspd.StatusOK {
		t.Errorf("status = %v, want OK", gotStatus)
	}
}

func TestHandleAccountInfoInitgroupsInvalidFilterValue(t *testing.T) {
	d := newTestDispatcher()

	var gotStatus ssspd.Status
	var gotMsg string
	req := ssspd.NewRequest(ssspd.KindAccountInfo, func(r *ssspd.Request, status ssspd.Status, msg string) {
		gotStatus, gotMsg = status, msg
	})
	req.AccountInfo = &ssspd.AccountInfoPayload{
		EntryType:  ssspd.EntryTypeInitgroups,
		FilterType: ssspd.FilterTypeName,
		AttrType:   ssspd.AttrTypeCore,
		Value:      "ali*e",
	}

	d.HandleAccountInfo(context.Background(), req)

	if gotStatus != ssspd.StatusInvalidRequest {
		t.Errorf("status = %v, want InvalidRequest", gotStatus)
	}
	if gotMsg != "Invalid filter value" {
		t.Errorf("message = %q, want %q", gotMsg, "Invalid filter value")
	}
}

func TestHandleAccountInfoCompletesExactlyOnce(t *testing.T) {
	d := newTestDispatcher()
	d.Online.MarkOffline()

	calls := 0
	req := ssspd.NewRequest(ssspd.KindAccountInfo, func(r *ssspd.Request, status ssspd.Status, msg string) {
		calls++
	})
	req.AccountInfo = &ssspd.AccountInfoPayload{EntryType: ssspd.EntryTypeUser, FilterType: ssspd.FilterTypeName, Value: "alice"}

	d.HandleAccountInfo(context.Background(), req)
	req.Complete(ssspd.StatusOK, "redundant")

	if calls != 1 {
		t.Errorf("completion callback invoked %d times, want exactly 1", calls)
	}
}

func TestBuildFilterByName(t *testing.T) {
	m := attrs.Map{ObjectClass: "posixAccount", Name: "uid"}
	got := BuildFilter(m, false, "alice")
	want := "(&(uid=alice)(objectclass=posixAccount))"
	if got != want {
		t.Errorf("BuildFilter() = %q, want %q", got, want)
	}
}

func TestBuildFilterByIDNum(t *testing.T) {
	m := attrs.Map{ObjectClass: "posixAccount", Name: "uid", IDAttr: "uidNumber"}
	got := BuildFilter(m, true, "1000")
	want := "(&(uidNumber=1000)(objectclass=posixAccount))"
	if got != want {
		t.Errorf("BuildFilter() = %q, want %q", got, want)
	}
}
