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
	"fmt"
	"net/url"
	"time"

	"gopkg.in/ldap.v2"

	"stash.kopano.io/kc/ssspd/config"
	"stash.kopano.io/kc/ssspd/identity/attrs"
	"stash.kopano.io/kc/ssspd/identity/auth"
	"stash.kopano.io/kc/ssspd/identity/directory"
	"stash.kopano.io/kc/ssspd/identity/dispatch"
	"stash.kopano.io/kc/ssspd/identity/enum"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/metrics"
	"stash.kopano.io/kc/ssspd/store"
)

// Context is the Provider Context of 3: the one set of shared collaborators
// - Online tracker, Directory Manager, ID dispatcher, Enumeration
// scheduler, Auth pipeline - every request against one domain is routed
// through. C9 builds exactly one of these at module init.
type Context struct {
	Config *config.Config

	Online     *onlinestate.Tracker
	Conn       *directory.Manager
	Dispatcher *dispatch.Dispatcher
	Scheduler  *enum.Scheduler
	Auth       *auth.Pipeline
}

// NewContext builds a Provider Context from cfg, wiring every component
// named in 4's C1-C8 against the same Online tracker, Directory Manager and
// local Store, per 3's "Provider Context" entity and 9's "a re-architect
// should scope [the connect single-flight property] to a single owning
// object" note.
func NewContext(cfg *config.Config, st store.Store, metricsCollectors *metrics.Collectors) (*Context, error) {
	addr, isTLS, err := parseLDAPURI(cfg.LDAPURI)
	if err != nil {
		return nil, fmt.Errorf("context: %v", err)
	}

	online := onlinestate.New(time.Duration(cfg.Domain.OfflineTimeout) * time.Second)
	online.Metrics = metricsCollectors

	conn := directory.NewManager(
		addr,
		isTLS,
		cfg.Domain.TLSReqcert.TLSConfig(addr),
		cfg.Domain.DefaultBindDN,
		cfg.Domain.DefaultAuthtok,
		30*time.Second,
		cfg.Logger,
	)
	conn.Metrics = metricsCollectors

	userMap := attrs.FromConfig(cfg.Domain.UserMap)
	groupMap := attrs.FromConfig(cfg.Domain.GroupMap)

	d := &dispatch.Dispatcher{
		Online:      online,
		Conn:        conn,
		Store:       st,
		Logger:      cfg.Logger,
		BaseDN:      cfg.LDAPBase,
		SearchScope: ldap.ScopeWholeSubtree,
		UserMap:     userMap,
		GroupMap:    groupMap,
	}

	var sched *enum.Scheduler
	if cfg.Domain.Enumerate {
		sched = &enum.Scheduler{
			Conn:           conn,
			Online:         online,
			Store:          st,
			Logger:         cfg.Logger,
			BaseDN:         cfg.LDAPBase,
			SearchScope:    ldap.ScopeWholeSubtree,
			UserMap:        userMap,
			GroupMap:       groupMap,
			RefreshTimeout: time.Duration(cfg.Domain.EnumRefreshTimeout) * time.Second,
			Metrics:        metricsCollectors,
		}
	}

	pipeline := &auth.Pipeline{
		Online:           online,
		Store:            st,
		Logger:           cfg.Logger,
		Auth:             cfg.Auth,
		HelperPath:       cfg.Auth.HelperPath,
		CacheCredentials: cfg.Domain.CacheCredentials,
		Metrics:          metricsCollectors,
	}

	return &Context{
		Config:     cfg,
		Online:     online,
		Conn:       conn,
		Dispatcher: d,
		Scheduler:  sched,
		Auth:       pipeline,
	}, nil
}

// Run starts the background Enumeration scheduler, if the domain is
// configured enumerate=true, and blocks until ctx is canceled.
func (c *Context) Run(ctx context.Context) {
	if c.Scheduler == nil {
		<-ctx.Done()
		return
	}
	c.Scheduler.Run(ctx)
}

// Dispatch routes req to the component named by its Kind, per 6.1's
// front-end contract: CHECK_ONLINE, ACCOUNT_INFO or AUTH.
func (c *Context) Dispatch(ctx context.Context, req *Request) {
	switch req.Kind {
	case KindCheckOnline:
		if c.Online.IsOffline() {
			req.Complete(StatusRetryLater, "Offline")
			return
		}
		req.Complete(StatusOK, "Success")
	case KindAccountInfo:
		c.Dispatcher.HandleAccountInfo(ctx, req)
	case KindAuth:
		c.Auth.HandlePAM(ctx, req)
	default:
		req.Complete(StatusInvalidRequest, "unknown request kind")
	}
}

func parseLDAPURI(raw string) (addr string, isTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid ldap_uri %q: %v", raw, err)
	}

	isTLS = u.Scheme == "ldaps"
	host := u.Host
	if host == "" {
		return "", false, fmt.Errorf("ldap_uri %q has no host", raw)
	}
	if u.Port() == "" {
		if isTLS {
			host += ":636"
		} else {
			host += ":389"
		}
	}
	return host, isTLS, nil
}
