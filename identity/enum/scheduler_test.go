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

package enum

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/ssspd/identity/attrs"
	"stash.kopano.io/kc/ssspd/identity/directory"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/store"
)

var userMap = attrs.Map{ObjectClass: "posixAccount", Name: "uid", IDAttr: "uidNumber", Modstamp: "modifyTimestamp"}

func TestBuildFilterFullEnumeration(t *testing.T) {
	got := BuildFilter(userMap, "")
	want := "(&(uid=*)(objectclass=posixAccount))"
	if got != want {
		t.Errorf("BuildFilter() = %q, want %q", got, want)
	}
}

func TestBuildFilterDeltaEnumeration(t *testing.T) {
	got := BuildFilter(userMap, "20240101000000Z")
	want := "(&(uid=*)(objectclass=posixAccount)(modifyTimestamp>=20240101000000Z)(!(modifyTimestamp=20240101000000Z)))"
	if got != want {
		t.Errorf("BuildFilter() = %q, want %q", got, want)
	}
}

func newTestScheduler() *Scheduler {
	return &Scheduler{
		Conn:           directory.NewManager("127.0.0.1:1", false, nil, "", "", 200*time.Millisecond, logrus.New()),
		Online:         onlinestate.New(300 * time.Second),
		Store:          store.NewMemStore(),
		Logger:         logrus.New(),
		BaseDN:         "dc=example,dc=com",
		UserMap:        userMap,
		GroupMap:       attrs.Map{ObjectClass: "posixGroup", Name: "cn", IDAttr: "gidNumber", Modstamp: "modifyTimestamp"},
		RefreshTimeout: time.Second,
	}
}

func TestRunCycleFailureLeavesWatermarkUnchanged(t *testing.T) {
	s := newTestScheduler()

	err := s.runCycle(context.Background())
	if err == nil {
		t.Fatalf("runCycle against an unreachable directory succeeded unexpectedly")
	}
	if s.MaxUserTimestamp() != "" {
		t.Errorf("user watermark = %q after a failed cycle, want unchanged (empty)", s.MaxUserTimestamp())
	}
	if !s.Online.IsOffline() {
		t.Errorf("scheduler did not mark offline after a connect failure")
	}
}

func TestRunCycleWithWatchdogReschedulesFromNowOnFailure(t *testing.T) {
	s := newTestScheduler()

	before := time.Now()
	s.runCycleWithWatchdog(context.Background())
	after := time.Now()

	s.mutex.Lock()
	next := s.nextRunAt
	lastRun := s.lastRun
	s.mutex.Unlock()

	if !lastRun.IsZero() {
		t.Errorf("lastRun = %v, want zero value after a failed cycle", lastRun)
	}
	minExpected := before.Add(s.RefreshTimeout)
	maxExpected := after.Add(s.RefreshTimeout)
	if next.Before(minExpected) || next.After(maxExpected) {
		t.Errorf("nextRunAt = %v, want between %v and %v (rescheduled from now)", next, minExpected, maxExpected)
	}
}
