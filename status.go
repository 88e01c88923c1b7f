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

import "stash.kopano.io/kc/ssspd/identity"

// Status is the errno-style completion status handed back to the front-end
// with every Request, see the front-end contract in 6.1.
type Status = identity.Status

// Known completion statuses.
const (
	StatusOK              = identity.StatusOK
	StatusRetryLater      = identity.StatusRetryLater
	StatusInvalidRequest  = identity.StatusInvalidRequest
	StatusSystemError     = identity.StatusSystemError
	StatusAuthUnavailable = identity.StatusAuthUnavailable
	StatusDirectoryError  = identity.StatusDirectoryError
	StatusStoreError      = identity.StatusStoreError
	StatusAuthFailed      = identity.StatusAuthFailed
	StatusConnectFailed   = identity.StatusConnectFailed
)

// ErrorKind classifies a ProviderError the way 7 enumerates error kinds.
type ErrorKind = identity.ErrorKind

// Known error kinds.
const (
	ErrorKindInvalidRequest  = identity.ErrorKindInvalidRequest
	ErrorKindNotConnected    = identity.ErrorKindNotConnected
	ErrorKindConnectFailed   = identity.ErrorKindConnectFailed
	ErrorKindBindFailed      = identity.ErrorKindBindFailed
	ErrorKindDirectory       = identity.ErrorKindDirectory
	ErrorKindStore           = identity.ErrorKindStore
	ErrorKindChildFailure    = identity.ErrorKindChildFailure
	ErrorKindAuthUnavailable = identity.ErrorKindAuthUnavailable
	ErrorKindTimeout         = identity.ErrorKindTimeout
	ErrorKindFatal           = identity.ErrorKindFatal
)

// A ProviderError carries an ErrorKind alongside the wrapped cause, so
// callers can branch on Kind with errors.As while %v still prints something
// useful.
type ProviderError = identity.ProviderError

// NewProviderError wraps err with the given kind and operation label.
var NewProviderError = identity.NewProviderError
