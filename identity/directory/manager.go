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
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/ldap.v2"

	ssspd "stash.kopano.io/kc/ssspd/identity"
	"stash.kopano.io/kc/ssspd/metrics"
)

// Manager owns the at-most-one shared Directory Session for a Provider
// Context, and guarantees at most one concurrent connect attempt: a second
// EnsureConnected arriving while the first is in flight subscribes to the
// same outcome instead of dialing again (4.3, 8's single-flight property),
// grounded on identifier/backends/ldap.go's rate-limited connect().
type Manager struct {
	addr   string
	isTLS  bool
	dialer *net.Dialer
	tls    *tls.Config

	bindDN       string
	bindPassword string

	timeout time.Duration
	limiter *rate.Limiter

	logger logrus.FieldLogger

	// Metrics is optional; nil leaves connect-attempt counters unset.
	Metrics *metrics.Collectors

	mutex   sync.Mutex
	session *Session
	inFlight *connectCall
}

// connectCall represents one in-flight connect attempt; waiters subscribe
// to done and then read session/err.
type connectCall struct {
	done    chan struct{}
	session *Session
	err     error
}

// NewManager creates a Manager that dials addr (host:port), optionally over
// TLS, and binds with the given credentials.
func NewManager(addr string, isTLS bool, tlsConfig *tls.Config, bindDN, bindPassword string, timeout time.Duration, logger logrus.FieldLogger) *Manager {
	return &Manager{
		addr:         addr,
		isTLS:        isTLS,
		dialer:       &net.Dialer{Timeout: ldap.DefaultTimeout, DualStack: true},
		tls:          tlsConfig,
		bindDN:       bindDN,
		bindPassword: bindPassword,
		timeout:      timeout,
		limiter:      rate.NewLimiter(100, 200),
		logger:       logger,
	}
}

// EnsureConnected implements 4.3's ensure_connected: returns the existing
// session if connected, otherwise releases any stale session and performs a
// single connect+bind, sharing the outcome with any concurrent caller.
func (m *Manager) EnsureConnected(parentCtx context.Context) (*Session, error) {
	m.mutex.Lock()
	if m.session.Connected() {
		s := m.session
		m.mutex.Unlock()
		return s, nil
	}
	if m.session != nil {
		// Stale session object; drop it before reconnecting.
		m.session.Invalidate()
		m.session = nil
	}
	if call := m.inFlight; call != nil {
		m.mutex.Unlock()
		<-call.done
		return call.session, call.err
	}

	call := &connectCall{done: make(chan struct{})}
	m.inFlight = call
	m.mutex.Unlock()

	session, err := m.connect(parentCtx)

	m.mutex.Lock()
	call.session, call.err = session, err
	if err == nil {
		m.session = session
	}
	m.inFlight = nil
	m.mutex.Unlock()

	close(call.done)
	return session, err
}

// Invalidate drops the currently shared session, e.g. on a fatal I/O error
// observed by the dispatcher.
func (m *Manager) Invalidate() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.session != nil {
		m.session.Invalidate()
		m.session = nil
	}
}

func (m *Manager) connect(parentCtx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(parentCtx, m.timeout)
	defer cancel()

	if err := m.limiter.Wait(ctx); err != nil {
		m.observeConnect("throttled")
		return nil, ssspd.NewProviderError(ssspd.ErrorKindConnectFailed, "directory connect", err)
	}

	c, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		m.observeConnect("dial_failed")
		return nil, ssspd.NewProviderError(ssspd.ErrorKindConnectFailed, "directory connect", ldap.NewError(ldap.ErrorNetwork, err))
	}

	var l *ldap.Conn
	if m.isTLS {
		sc := tls.Client(c, m.tls)
		if err := sc.Handshake(); err != nil {
			c.Close()
			m.observeConnect("tls_failed")
			return nil, ssspd.NewProviderError(ssspd.ErrorKindConnectFailed, "directory starttls", ldap.NewError(ldap.ErrorNetwork, err))
		}
		l = ldap.NewConn(sc, true)
	} else {
		l = ldap.NewConn(c, false)
	}
	l.Start()

	if m.bindDN != "" {
		if err := l.Bind(m.bindDN, m.bindPassword); err != nil {
			l.Close()
			m.observeConnect("bind_failed")
			return nil, ssspd.NewProviderError(ssspd.ErrorKindBindFailed, "directory bind", err)
		}
	}

	m.logger.WithField("addr", m.addr).Debugln("directory connection established")
	m.observeConnect("ok")

	return &Session{conn: l, connected: true, bindDN: m.bindDN}, nil
}

// observeConnect records one connect attempt's outcome on Metrics, if
// configured.
func (m *Manager) observeConnect(outcome string) {
	if m.Metrics == nil {
		return
	}
	m.Metrics.ObserveConnectAttempt(outcome)
}
