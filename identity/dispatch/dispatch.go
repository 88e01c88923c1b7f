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
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ldap.v2"

	ssspd "stash.kopano.io/kc/ssspd/identity"
	"stash.kopano.io/kc/ssspd/identity/attrs"
	"stash.kopano.io/kc/ssspd/identity/directory"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/store"
)

// Dispatcher is the ID request dispatcher (C4, 4.4). It is single-threaded
// from the perspective of one Request; multiple Requests are allowed to
// overlap on the same Directory Session, per 4.4's closing remark.
type Dispatcher struct {
	Online  *onlinestate.Tracker
	Conn    *directory.Manager
	Store   store.Store
	Logger  logrus.FieldLogger

	BaseDN     string
	SearchScope int

	UserMap  attrs.Map
	GroupMap attrs.Map
}

// HandleAccountInfo implements 4.4's handle_account_info entry point.
func (d *Dispatcher) HandleAccountInfo(ctx context.Context, req *ssspd.Request) {
	payload := req.AccountInfo

	if d.Online.IsOffline() {
		req.Complete(ssspd.StatusRetryLater, "Offline")
		return
	}

	filter, attributes, err := d.buildOperation(payload)
	if err != nil {
		req.Complete(ssspd.StatusInvalidRequest, err.Error())
		return
	}
	if filter == noopFilter {
		// Wildcard no-op: enumerate-on-demand is refused, see 4.4 step 2.
		req.Complete(ssspd.StatusOK, "Success")
		return
	}

	session, err := d.Conn.EnsureConnected(ctx)
	if err != nil {
		d.Online.MarkOffline()
		if pe, ok := err.(*ssspd.ProviderError); ok {
			req.Complete(pe.Status(), pe.Error())
			return
		}
		req.Complete(ssspd.StatusRetryLater, err.Error())
		return
	}

	switch payload.EntryType {
	case ssspd.EntryTypeInitgroups:
		err = d.searchInitgroups(ctx, session, payload.Value)
	case ssspd.EntryTypeGroup:
		_, err = d.search(session, filter, attributes, func(entries []*ldap.Entry) error {
			d.GroupMap.NormalizeUUIDAttribute(entries)
			_, perr := d.Store.PersistGroups(ctx, entries, d.GroupMap.Modstamp)
			return perr
		})
	default:
		_, err = d.search(session, filter, attributes, func(entries []*ldap.Entry) error {
			d.UserMap.NormalizeUUIDAttribute(entries)
			_, perr := d.Store.PersistUsers(ctx, entries, d.UserMap.Modstamp)
			return perr
		})
	}

	if err != nil {
		if pe, ok := err.(*ssspd.ProviderError); ok {
			if pe.Kind == ssspd.ErrorKindConnectFailed || pe.Kind == ssspd.ErrorKindBindFailed || pe.Kind == ssspd.ErrorKindNotConnected {
				d.Online.MarkOffline()
			}
			req.Complete(pe.Status(), pe.Error())
			return
		}
		req.Complete(ssspd.StatusDirectoryError, err.Error())
		return
	}

	req.Complete(ssspd.StatusOK, "Success")
}

const noopFilter = "\x00noop\x00"

// buildOperation validates the payload per 4.4 step 2 and builds the
// server-side filter of step 3, returning noopFilter for the USER/GROUP
// wildcard no-op case.
func (d *Dispatcher) buildOperation(p *ssspd.AccountInfoPayload) (filter string, attributes []string, err error) {
	switch p.EntryType {
	case ssspd.EntryTypeUser:
		if p.Value == "*" {
			return noopFilter, nil, nil
		}
		return BuildFilter(d.UserMap, p.FilterType == ssspd.FilterTypeIDNum, p.Value), d.UserMap.Attributes(), nil

	case ssspd.EntryTypeGroup:
		if p.Value == "*" {
			return noopFilter, nil, nil
		}
		return BuildFilter(d.GroupMap, p.FilterType == ssspd.FilterTypeIDNum, p.Value), d.GroupMap.Attributes(), nil

	case ssspd.EntryTypeInitgroups:
		if p.FilterType != ssspd.FilterTypeName {
			return "", nil, fmt.Errorf("invalid filter type")
		}
		if p.AttrType != ssspd.AttrTypeCore {
			return "", nil, fmt.Errorf("invalid attr type")
		}
		if strings.Contains(p.Value, "*") {
			return "", nil, fmt.Errorf("Invalid filter value")
		}
		// No client-side filter; the directory-side primitive does the
		// membership search (4.4 step 3, INITGROUPS).
		return "", d.UserMap.Attributes(), nil

	default:
		return "", nil, fmt.Errorf("invalid request")
	}
}

// search issues a single directory search and hands the results to persist.
func (d *Dispatcher) search(session *directory.Session, filter string, attributes []string, persist func([]*ldap.Entry) error) (*ldap.SearchResult, error) {
	req := ldap.NewSearchRequest(
		d.BaseDN,
		d.SearchScope, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		attributes,
		nil,
	)
	sr, err := session.Conn().Search(req)
	if err != nil {
		d.Conn.Invalidate()
		return nil, ssspd.NewProviderError(ssspd.ErrorKindDirectory, "directory search", err)
	}
	if perr := persist(sr.Entries); perr != nil {
		return nil, ssspd.NewProviderError(ssspd.ErrorKindStore, "persist search results", perr)
	}
	return sr, nil
}

// searchInitgroups resolves group membership for user and persists it via
// the directory-to-store adapter, per 4.4's INITGROUPS primitive.
func (d *Dispatcher) searchInitgroups(ctx context.Context, session *directory.Session, user string) error {
	userFilter := BuildFilter(d.UserMap, false, user)
	req := ldap.NewSearchRequest(
		d.BaseDN,
		d.SearchScope, ldap.NeverDerefAliases, 1, 0, false,
		userFilter,
		[]string{"dn"},
		nil,
	)
	sr, err := session.Conn().Search(req)
	if err != nil {
		d.Conn.Invalidate()
		return ssspd.NewProviderError(ssspd.ErrorKindDirectory, "directory search", err)
	}
	if len(sr.Entries) != 1 {
		return d.Store.PersistInitgroups(ctx, user, nil)
	}
	userDN := sr.Entries[0].DN

	memberFilter := fmt.Sprintf("(&(objectclass=%s)(member=%s))", d.GroupMap.ObjectClass, ldap.EscapeFilter(userDN))
	greq := ldap.NewSearchRequest(
		d.BaseDN,
		d.SearchScope, ldap.NeverDerefAliases, 0, 0, false,
		memberFilter,
		[]string{"dn"},
		nil,
	)
	gsr, err := session.Conn().Search(greq)
	if err != nil {
		d.Conn.Invalidate()
		return ssspd.NewProviderError(ssspd.ErrorKindDirectory, "directory search", err)
	}

	groupDNs := make([]string, len(gsr.Entries))
	for i, e := range gsr.Entries {
		groupDNs[i] = e.DN
	}

	if err := d.Store.PersistInitgroups(ctx, user, groupDNs); err != nil {
		return ssspd.NewProviderError(ssspd.ErrorKindStore, "persist initgroups", err)
	}
	return nil
}
