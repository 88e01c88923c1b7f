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

package directory

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestEnsureConnectedSingleFlight(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	var accepted int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepted, 1)
			go func() {
				buf := make([]byte, 1024)
				for {
					if _, err := c.Read(buf); err != nil {
						return
					}
				}
			}()
		}
	}()

	logger := logrus.New()
	m := NewManager(ln.Addr().String(), false, nil, "", "", 5*time.Second, logger)

	const concurrency = 5
	var wg sync.WaitGroup
	sessions := make([]*Session, concurrency)
	errs := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sessions[idx], errs[idx] = m.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("EnsureConnected[%d] returned error: %v", i, err)
		}
	}
	for i := 1; i < concurrency; i++ {
		if sessions[i] != sessions[0] {
			t.Errorf("EnsureConnected[%d] returned a different session than [0], expected single shared session", i)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&accepted); got != 1 {
		t.Errorf("listener accepted %d connections, want exactly 1 (single-flight connect)", got)
	}
}

func TestEnsureConnectedReturnsExistingConnectedSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go discardConn(c)
		}
	}()

	m := NewManager(ln.Addr().String(), false, nil, "", "", 5*time.Second, logrus.New())
	s1, err := m.EnsureConnected(context.Background())
	if err != nil {
		t.Fatalf("first EnsureConnected failed: %v", err)
	}
	s2, err := m.EnsureConnected(context.Background())
	if err != nil {
		t.Fatalf("second EnsureConnected failed: %v", err)
	}
	if s1 != s2 {
		t.Errorf("EnsureConnected dialed a new session while already connected")
	}
}

func discardConn(c net.Conn) {
	buf := make([]byte, 1024)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}
