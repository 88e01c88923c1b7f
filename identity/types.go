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

// Package identity holds the request/status vocabulary shared by every
// component of the identity and authentication provider core: the kind of
// thing the front-end router asks for (3, "Request"), and the errno-style
// status it gets back (6.1).
package identity

import "sync"

// Kind identifies what a Request asks the core to do.
type Kind int

// Known request kinds.
const (
	KindCheckOnline Kind = iota
	KindAccountInfo
	KindAuth
)

// EntryType is the kind of directory entity an Account Info request
// resolves, see 3.
type EntryType int

// Known entry types.
const (
	EntryTypeUser EntryType = iota
	EntryTypeGroup
	EntryTypeInitgroups
)

// FilterType selects whether an Account Info request filters by name or by
// numeric id.
type FilterType int

// Known filter types.
const (
	FilterTypeName FilterType = iota
	FilterTypeIDNum
)

// AttrType selects which attribute set a lookup requests. CORE is the only
// value this core's validation cares about (4.4, INITGROUPS requires it).
type AttrType int

// Known attribute request types.
const (
	AttrTypeCore AttrType = iota
	AttrTypeAll
)

// AccountInfoPayload is the Account Request payload of 3.
type AccountInfoPayload struct {
	EntryType  EntryType
	FilterType FilterType
	AttrType   AttrType
	Value      string
}

// PAMCommand is the pam_data.cmd the front-end passes on an AUTH request.
type PAMCommand int

// Known PAM commands.
const (
	PAMAuthenticate PAMCommand = iota
	PAMChauthtok
	PAMOther
)

// PAMResponseType enumerates the kinds of response item the auth pipeline
// appends to a PAM Request payload, see 4.6 step 9 and 6.2's msg_type.
type PAMResponseType int32

// Known PAM response item types.
const (
	PAMTextMsg  PAMResponseType = 1
	PAMErrorMsg PAMResponseType = 2
	PAMEnvItem  PAMResponseType = 3
)

// PAMResponseItem is one entry of the zero-or-more response items a PAM
// Request payload carries back to the front-end.
type PAMResponseItem struct {
	Type PAMResponseType
	Data []byte
}

// PAMPayload is the PAM Request payload of 3.
type PAMPayload struct {
	Cmd PAMCommand
	UID uint32
	GID uint32

	User       string
	AuthTok    []byte
	NewAuthTok []byte

	// UPN is populated by the auth pipeline once the principal name has
	// been resolved (4.6 steps 3-5); it is not set by the front-end.
	UPN string

	PAMStatus Status
	Response  []PAMResponseItem
}

// CompletionFunc is the single callback a Request fires exactly once, per
// 6.1's fn(req, status, err_msg) contract.
type CompletionFunc func(req *Request, status Status, errMsg string)

// Request is created by the front-end and passed into the core; its
// lifetime ends the instant its completion callback has fired, which this
// implementation enforces with a sync.Once so that every code path -
// success, error, or timeout - completes it exactly once (3's invariant).
type Request struct {
	Kind Kind

	AccountInfo *AccountInfoPayload
	PAM         *PAMPayload

	once     sync.Once
	complete CompletionFunc
}

// NewRequest creates a Request that will invoke fn exactly once when
// Complete is called, however many times Complete is itself invoked.
func NewRequest(kind Kind, fn CompletionFunc) *Request {
	return &Request{
		Kind:     kind,
		complete: fn,
	}
}

// Complete fires the Request's completion callback. Only the first call
// has any effect; subsequent calls are no-ops, realizing the "exactly one
// callback" invariant of 3 even when multiple error paths race to
// complete the same Request.
func (r *Request) Complete(status Status, errMsg string) {
	r.once.Do(func() {
		if r.complete != nil {
			r.complete(r, status, errMsg)
		}
	})
}

// Status is the errno-style completion status handed back to the front-end
// with every Request, see the front-end contract in 6.1.
type Status int

// Known completion statuses.
const (
	StatusOK Status = iota
	StatusRetryLater
	StatusInvalidRequest
	StatusSystemError
	StatusAuthUnavailable
	StatusDirectoryError
	StatusStoreError
	StatusAuthFailed
	StatusConnectFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Success"
	case StatusRetryLater:
		return "Retry later"
	case StatusInvalidRequest:
		return "Invalid request"
	case StatusSystemError:
		return "System error"
	case StatusAuthUnavailable:
		return "Authentication unavailable"
	case StatusDirectoryError:
		return "Directory error"
	case StatusStoreError:
		return "Store error"
	case StatusAuthFailed:
		return "Authentication failed"
	case StatusConnectFailed:
		return "Connect failed"
	default:
		return "Unknown status"
	}
}

// ErrorKind classifies a ProviderError the way 7 enumerates error kinds.
type ErrorKind int

// Known error kinds.
const (
	ErrorKindInvalidRequest ErrorKind = iota
	ErrorKindNotConnected
	ErrorKindConnectFailed
	ErrorKindBindFailed
	ErrorKindDirectory
	ErrorKindStore
	ErrorKindChildFailure
	ErrorKindAuthUnavailable
	ErrorKindTimeout
	ErrorKindFatal
)

// A ProviderError carries an ErrorKind alongside the wrapped cause, so
// callers can branch on Kind with errors.As while %v still prints something
// useful.
type ProviderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Status maps an ErrorKind to the front-end facing Status, per 7's
// propagation policy.
func (e *ProviderError) Status() Status {
	switch e.Kind {
	case ErrorKindInvalidRequest:
		return StatusInvalidRequest
	case ErrorKindNotConnected, ErrorKindConnectFailed:
		return StatusRetryLater
	case ErrorKindBindFailed:
		return StatusAuthFailed
	case ErrorKindDirectory:
		return StatusDirectoryError
	case ErrorKindStore:
		return StatusStoreError
	case ErrorKindChildFailure:
		return StatusSystemError
	case ErrorKindAuthUnavailable:
		return StatusAuthUnavailable
	default:
		return StatusSystemError
	}
}

// NewProviderError wraps err with the given kind and operation label.
func NewProviderError(kind ErrorKind, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Op: op, Err: err}
}
