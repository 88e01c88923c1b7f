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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ldap.v2"

	"stash.kopano.io/kc/ssspd/identity/attrs"
	"stash.kopano.io/kc/ssspd/identity/directory"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/metrics"
	"stash.kopano.io/kc/ssspd/store"
)

// Scheduler is the Enumeration scheduler (C5, 4.5). It runs only when the
// domain is configured enumerate=true, per 4.5's opening line.
type Scheduler struct {
	Conn    *directory.Manager
	Online  *onlinestate.Tracker
	Store   store.Store
	Logger  logrus.FieldLogger

	// Metrics is optional; nil leaves enumeration unmonitored.
	Metrics *metrics.Collectors

	BaseDN      string
	SearchScope int

	UserMap  attrs.Map
	GroupMap attrs.Map

	RefreshTimeout time.Duration

	mutex             sync.Mutex
	lastRun           time.Time
	nextRunAt         time.Time
	maxUserTimestamp  string
	maxGroupTimestamp string
}

// MaxUserTimestamp returns the current user watermark, mainly for tests.
func (s *Scheduler) MaxUserTimestamp() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.maxUserTimestamp
}

// MaxGroupTimestamp returns the current group watermark, mainly for tests.
func (s *Scheduler) MaxGroupTimestamp() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.maxGroupTimestamp
}

// Run drives the periodic enumeration loop until ctx is canceled: fires
// immediately, then every RefreshTimeout seconds measured from the start
// of the previous cycle, per 4.5 step 1.
func (s *Scheduler) Run(ctx context.Context) {
	s.mutex.Lock()
	s.nextRunAt = time.Now()
	s.mutex.Unlock()

	for {
		s.mutex.Lock()
		delay := time.Until(s.nextRunAt)
		s.mutex.Unlock()
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runCycleWithWatchdog(ctx)
	}
}

// runCycleWithWatchdog arms the watchdog timer of 4.5 step 6, cancels the
// in-flight cycle if it fires first, and reschedules from last_run on
// success or from now on failure/timeout.
func (s *Scheduler) runCycleWithWatchdog(parentCtx context.Context) {
	start := time.Now()
	cycleCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	fired := make(chan struct{})
	watchdog := time.AfterFunc(s.RefreshTimeout, func() {
		close(fired)
		cancel()
	})

	err := s.runCycle(cycleCtx)

	stopped := watchdog.Stop()

	select {
	case <-fired:
		s.Logger.Warnln("enumeration watchdog fired, rescheduling")
		s.mutex.Lock()
		s.nextRunAt = time.Now().Add(s.RefreshTimeout)
		s.mutex.Unlock()
		return
	default:
	}
	if !stopped {
		// Watchdog.Stop raced with the AfterFunc firing; treat as timeout.
		<-fired
		s.mutex.Lock()
		s.nextRunAt = time.Now().Add(s.RefreshTimeout)
		s.mutex.Unlock()
		return
	}

	if err != nil {
		s.Logger.WithError(err).Warnln("enumeration cycle failed, rescheduling from now")
		s.mutex.Lock()
		s.nextRunAt = time.Now().Add(s.RefreshTimeout)
		s.mutex.Unlock()
		return
	}

	s.mutex.Lock()
	s.lastRun = start
	s.nextRunAt = start.Add(s.RefreshTimeout)
	s.mutex.Unlock()
}

// runCycle performs Phase A (users) then Phase B (groups), strictly
// ordered: groups never start unless users completed, per 5's ordering
// guarantee.
func (s *Scheduler) runCycle(ctx context.Context) error {
	if err := s.enumerateUsers(ctx); err != nil {
		return err
	}
	if err := s.enumerateGroups(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) enumerateUsers(ctx context.Context) error {
	watermark := s.MaxUserTimestamp()
	filter := BuildFilter(s.UserMap, watermark)

	entries, err := s.searchAndConnect(ctx, filter, s.UserMap.Attributes())
	if err != nil {
		s.observeCycle("users", err)
		return err
	}
	s.UserMap.NormalizeUUIDAttribute(entries)

	maxTS, err := s.Store.PersistUsers(ctx, entries, s.UserMap.Modstamp)
	if err != nil {
		s.observeCycle("users", err)
		return err
	}
	if maxTS != "" && maxTS > watermark {
		s.mutex.Lock()
		s.maxUserTimestamp = maxTS
		s.mutex.Unlock()
		s.observeWatermark("users", maxTS)
	}
	s.observeCycle("users", nil)
	return nil
}

func (s *Scheduler) enumerateGroups(ctx context.Context) error {
	watermark := s.MaxGroupTimestamp()
	filter := BuildFilter(s.GroupMap, watermark)

	entries, err := s.searchAndConnect(ctx, filter, s.GroupMap.Attributes())
	if err != nil {
		s.observeCycle("groups", err)
		return err
	}
	s.GroupMap.NormalizeUUIDAttribute(entries)

	maxTS, err := s.Store.PersistGroups(ctx, entries, s.GroupMap.Modstamp)
	if err != nil {
		s.observeCycle("groups", err)
		return err
	}
	if maxTS != "" && maxTS > watermark {
		s.mutex.Lock()
		s.maxGroupTimestamp = maxTS
		s.mutex.Unlock()
		s.observeWatermark("groups", maxTS)
	}
	s.observeCycle("groups", nil)
	return nil
}

func (s *Scheduler) observeCycle(entity string, err error) {
	if s.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.Metrics.ObserveEnumCycle(entity, outcome)
}

// modstampLayout is the LDAP generalized-time format modifyTimestamp-style
// attributes use (e.g. 20060102150405Z).
const modstampLayout = "20060102150405Z"

// observeWatermark records the newest modstamp seen for entity as unix
// seconds, if ts parses as LDAP generalized time. Non-conforming servers
// whose modstamp is some other format simply leave the gauge unset.
func (s *Scheduler) observeWatermark(entity, ts string) {
	if s.Metrics == nil {
		return
	}
	t, err := time.Parse(modstampLayout, ts)
	if err != nil {
		return
	}
	s.Metrics.EnumWatermark.WithLabelValues(entity).Set(float64(t.Unix()))
}

func (s *Scheduler) searchAndConnect(ctx context.Context, filter string, attributes []string) ([]*ldap.Entry, error) {
	session, err := s.Conn.EnsureConnected(ctx)
	if err != nil {
		s.Online.MarkOffline()
		return nil, err
	}

	req := ldap.NewSearchRequest(
		s.BaseDN,
		s.SearchScope, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		attributes,
		nil,
	)
	sr, err := session.Conn().Search(req)
	if err != nil {
		s.Conn.Invalidate()
		return nil, err
	}
	return sr.Entries, nil
}
