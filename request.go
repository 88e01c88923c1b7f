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

// Package ssspd holds the request/status vocabulary shared by every
// component of the identity and authentication provider core: the kind of
// thing the front-end router asks for (3, "Request"), and the errno-style
// status it gets back (6.1). The vocabulary itself lives in the identity
// package so that provider components (auth, dispatch, directory) can
// depend on it without importing this root package back.
package ssspd

import "stash.kopano.io/kc/ssspd/identity"

// Kind identifies what a Request asks the core to do.
type Kind = identity.Kind

// Known request kinds.
const (
	KindCheckOnline = identity.KindCheckOnline
	KindAccountInfo = identity.KindAccountInfo
	KindAuth        = identity.KindAuth
)

// EntryType is the kind of directory entity an Account Info request
// resolves, see 3.
type EntryType = identity.EntryType

// Known entry types.
const (
	EntryTypeUser        = identity.EntryTypeUser
	EntryTypeGroup       = identity.EntryTypeGroup
	EntryTypeInitgroups  = identity.EntryTypeInitgroups
)

// FilterType selects whether an Account Info request filters by name or by
// numeric id.
type FilterType = identity.FilterType

// Known filter types.
const (
	FilterTypeName  = identity.FilterTypeName
	FilterTypeIDNum = identity.FilterTypeIDNum
)

// AttrType selects which attribute set a lookup requests. CORE is the only
// value this core's validation cares about (4.4, INITGROUPS requires it).
type AttrType = identity.AttrType

// Known attribute request types.
const (
	AttrTypeCore = identity.AttrTypeCore
	AttrTypeAll  = identity.AttrTypeAll
)

// AccountInfoPayload is the Account Request payload of 3.
type AccountInfoPayload = identity.AccountInfoPayload

// PAMCommand is the pam_data.cmd the front-end passes on an AUTH request.
type PAMCommand = identity.PAMCommand

// Known PAM commands.
const (
	PAMAuthenticate = identity.PAMAuthenticate
	PAMChauthtok    = identity.PAMChauthtok
	PAMOther        = identity.PAMOther
)

// PAMResponseType enumerates the kinds of response item the auth pipeline
// appends to a PAM Request payload, see 4.6 step 9 and 6.2's msg_type.
type PAMResponseType = identity.PAMResponseType

// Known PAM response item types.
const (
	PAMTextMsg  = identity.PAMTextMsg
	PAMErrorMsg = identity.PAMErrorMsg
	PAMEnvItem  = identity.PAMEnvItem
)

// PAMResponseItem is one entry of the zero-or-more response items a PAM
// Request payload carries back to the front-end.
type PAMResponseItem = identity.PAMResponseItem

// PAMPayload is the PAM Request payload of 3.
type PAMPayload = identity.PAMPayload

// CompletionFunc is the single callback a Request fires exactly once, per
// 6.1's fn(req, status, err_msg) contract.
type CompletionFunc = identity.CompletionFunc

// Request is created by the front-end and passed into the core; its
// lifetime ends the instant its completion callback has fired, which this
// implementation enforces with a sync.Once so that every code path -
// success, error, or timeout - completes it exactly once (3's invariant).
type Request = identity.Request

// NewRequest creates a Request that will invoke fn exactly once when
// Complete is called, however many times Complete is itself invoked.
var NewRequest = identity.NewRequest
