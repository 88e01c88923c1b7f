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

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/ssspd/store"
)

// cachePassword is the Offline-password cache hook (C8, 4.8): a salted
// hash write to the local store, using a scoped buffer that is zeroed on
// release (the Go idiom for krb5_auth.c's password_destructor). Errors are
// logged only; the caller still reports the original auth result as
// SUCCESS, per 4.8's non-fatal completion policy.
func cachePassword(ctx context.Context, st store.Store, user string, password []byte, logger logrus.FieldLogger) {
	// Zero-padded with a terminator, matching the source's
	// talloc_size(pd->authtok_size + 1) + trailing '\0'. The terminator is
	// not part of the password handed to the store.
	buf := make([]byte, len(password)+1)
	copy(buf, password)
	defer wipe(buf)

	if err := st.CachePassword(ctx, user, buf[:len(password)]); err != nil {
		logger.WithField("user", user).WithError(err).Warnln("failed to cache password, offline auth may not work")
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
