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

package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	ssspd "stash.kopano.io/kc/ssspd/identity"
	"stash.kopano.io/kc/ssspd/config"
	"stash.kopano.io/kc/ssspd/identity/onlinestate"
	"stash.kopano.io/kc/ssspd/metrics"
	"stash.kopano.io/kc/ssspd/store"
)

// upnAttribute is the local store attribute holding a user's principal
// name, per 6.3(a).
const upnAttribute = "UPN"

// Pipeline is the Auth pipeline (C6, 4.6): resolves the user's principal
// name, spawns the helper child, frames the request, reads the framed
// response, and maps status - grounded end to end on krb5_auth.c's
// krb5_pam_handler()/get_user_upn_done()/krb5_pam_handler_done().
type Pipeline struct {
	Online *onlinestate.Tracker
	Store  store.Store
	Logger logrus.FieldLogger

	Auth       config.AuthConfig
	HelperPath string

	CacheCredentials bool

	// Metrics is optional; nil leaves PAM requests unmonitored.
	Metrics *metrics.Collectors

	// SpawnFunc drives the Child supervisor (C7); it defaults to Spawn
	// and is overridable so tests can exercise the pipeline without a
	// real helper binary.
	SpawnFunc func(ctx context.Context, helperPath string, uid, gid uint32, reqBuf []byte) ([]byte, error)
}

func (p *Pipeline) spawn(ctx context.Context, uid, gid uint32, reqBuf []byte) ([]byte, error) {
	fn := p.SpawnFunc
	if fn == nil {
		fn = Spawn
	}
	return fn(ctx, p.HelperPath, uid, gid, reqBuf)
}

// HandlePAM implements 4.6's handle_pam entry point.
func (p *Pipeline) HandlePAM(ctx context.Context, req *ssspd.Request) {
	payload := req.PAM

	complete := func(status ssspd.Status, errMsg string) {
		p.observeRequest(payload.Cmd, status)
		req.Complete(status, errMsg)
	}

	if p.Online.IsOffline() {
		complete(ssspd.StatusAuthUnavailable, "retry later")
		return
	}

	if payload.Cmd != ssspd.PAMAuthenticate && payload.Cmd != ssspd.PAMChauthtok {
		complete(ssspd.StatusOK, "Success")
		return
	}

	upn, err := p.resolveUPN(ctx, payload.User)
	if err != nil {
		complete(ssspd.StatusSystemError, err.Error())
		return
	}
	payload.UPN = upn

	reqBuf := EncodeRequest(payload)
	replyBuf, err := p.spawn(ctx, payload.UID, payload.GID, reqBuf)
	if err != nil {
		complete(ssspd.StatusSystemError, err.Error())
		return
	}

	rawStatus, msgType, msg, err := DecodeReply(replyBuf)
	if err != nil {
		complete(ssspd.StatusSystemError, err.Error())
		return
	}

	payload.PAMStatus = ssspd.Status(rawStatus)
	payload.Response = append(payload.Response, ssspd.PAMResponseItem{
		Type: ssspd.PAMResponseType(msgType),
		Data: msg,
	})

	if payload.PAMStatus == ssspd.StatusAuthUnavailable {
		p.Online.MarkOffline()
	}

	if payload.PAMStatus == ssspd.StatusOK && payload.Cmd == ssspd.PAMAuthenticate {
		payload.Response = append(payload.Response,
			ssspd.PAMResponseItem{Type: ssspd.PAMEnvItem, Data: []byte(fmt.Sprintf("REALM=%s", p.Auth.Realm))},
			ssspd.PAMResponseItem{Type: ssspd.PAMEnvItem, Data: []byte(fmt.Sprintf("KDC=%s", p.Auth.KDCAddr))},
		)
	}

	if payload.PAMStatus == ssspd.StatusOK && p.CacheCredentials {
		password := passwordToCache(payload)
		if len(password) > 0 {
			cachePassword(ctx, p.Store, payload.User, password, p.Logger)
		}
	}

	complete(payload.PAMStatus, payload.PAMStatus.String())
}

func (p *Pipeline) observeRequest(cmd ssspd.PAMCommand, status ssspd.Status) {
	if p.Metrics == nil {
		return
	}
	name := "other"
	switch cmd {
	case ssspd.PAMAuthenticate:
		name = "authenticate"
	case ssspd.PAMChauthtok:
		name = "chauthtok"
	}
	p.Metrics.ObserveAuthRequest(name, status.String())
}

func passwordToCache(p *ssspd.PAMPayload) []byte {
	switch p.Cmd {
	case ssspd.PAMAuthenticate:
		return p.AuthTok
	case ssspd.PAMChauthtok:
		return p.NewAuthTok
	default:
		return nil
	}
}

// resolveUPN implements 4.6 steps 3-5: a single get_user_attr(user, ["UPN"])
// lookup, zero results falling through to the simple-UPN fallback, more
// than one result logged and treated as zero.
func (p *Pipeline) resolveUPN(ctx context.Context, user string) (string, error) {
	values, err := p.Store.GetUserAttr(ctx, user, upnAttribute)
	if err != nil {
		return "", ssspd.NewProviderError(ssspd.ErrorKindStore, "resolve upn", err)
	}

	var upn string
	switch len(values) {
	case 0:
		// Fall through to the simple-UPN fallback below.
	case 1:
		upn = values[0]
	default:
		p.Logger.WithField("user", user).Warnln("user search by name returned more than one UPN, treating as none")
	}

	if upn == "" && p.Auth.TrySimpleUPN && p.Auth.Realm != "" {
		upn = fmt.Sprintf("%s@%s", user, p.Auth.Realm)
	}

	if upn == "" {
		return "", fmt.Errorf("cannot set UPN for user %q", user)
	}

	return upn, nil
}
