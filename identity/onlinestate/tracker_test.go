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

package onlinestate

import (
	"testing"
	"time"
)

func TestIsOfflineBeforeAnyFailure(t *testing.T) {
	tr := New(300 * time.Second)
	if tr.IsOffline() {
		t.Errorf("fresh tracker reported offline")
	}
}

func TestMarkOfflineSticksWithinWindow(t *testing.T) {
	tr := New(50 * time.Millisecond)
	tr.MarkOffline()
	if !tr.IsOffline() {
		t.Errorf("tracker did not report offline right after MarkOffline")
	}
}

func TestIsOfflineClearsAfterWindow(t *testing.T) {
	tr := New(10 * time.Millisecond)
	tr.MarkOffline()
	time.Sleep(30 * time.Millisecond)
	if tr.IsOffline() {
		t.Errorf("tracker still reported offline after the sticky window elapsed")
	}
}

func TestMarkOfflineIdempotentWentOffline(t *testing.T) {
	tr := New(time.Hour)
	tr.MarkOffline()
	first := tr.wentOffline
	time.Sleep(5 * time.Millisecond)
	tr.MarkOffline()
	if !tr.wentOffline.Equal(first) {
		t.Errorf("went_offline moved on a repeated MarkOffline call while already offline: %v -> %v", first, tr.wentOffline)
	}
}
