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

// Package onlinestate implements the sticky offline flag shared by the ID
// and Auth cores (C1, 4.1), grounded on original_source's
// server/providers/ldap/ldap_id.c is_offline()/be_mark_offline().
package onlinestate

import (
	"sync"
	"time"

	"stash.kopano.io/kc/ssspd/metrics"
)

// Tracker is the online/offline state of one Provider Context. It is safe
// for concurrent use since, unlike the source's single-threaded reactor,
// several goroutines may dispatch requests against the same context.
type Tracker struct {
	offlineTimeout time.Duration

	// Metrics is optional; nil leaves the online/offline gauge unset.
	Metrics *metrics.Collectors

	mutex      sync.Mutex
	offline    bool
	wentOffline time.Time
}

// New creates a Tracker whose sticky window is offlineTimeout.
func New(offlineTimeout time.Duration) *Tracker {
	return &Tracker{
		offlineTimeout: offlineTimeout,
	}
}

// MarkOffline records the current time and sets offline. Calling it while
// already offline does not extend the sticky window - went_offline only
// ever moves forward to the first failure of a run, matching the
// monotonic-non-decreasing idempotence property of 8.
func (t *Tracker) MarkOffline() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.offline {
		return
	}
	t.offline = true
	t.wentOffline = time.Now()
	t.observeOnline(false)
}

// IsOffline reports whether the tracker is still within its sticky window.
// Once the window elapses the flag implicitly clears: the very next
// dispatched request will try to reconnect, and MarkOffline fires again if
// that fails, per 4.1's rationale.
func (t *Tracker) IsOffline() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.offline {
		return false
	}
	if time.Since(t.wentOffline) >= t.offlineTimeout {
		t.offline = false
		t.observeOnline(true)
		return false
	}
	return true
}

// Reset clears the offline flag immediately, ending the sticky window
// early.
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.offline = false
	t.observeOnline(true)
}

// observeOnline records the current state on Metrics, if configured. Callers
// must hold t.mutex.
func (t *Tracker) observeOnline(online bool) {
	if t.Metrics == nil {
		return
	}
	t.Metrics.SetOnline(online)
}
