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
	"bytes"
	"testing"

	ssspd "stash.kopano.io/kc/ssspd/identity"
)

func TestEncodeRequestRoundTripAuthenticate(t *testing.T) {
	p := &ssspd.PAMPayload{
		Cmd:     ssspd.PAMAuthenticate,
		UPN:     "alice@EXAMPLE.COM",
		AuthTok: []byte("hunter2"),
	}
	buf := EncodeRequest(p)

	got, err := DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if got.Cmd != wireCmdAuthenticate {
		t.Errorf("Cmd = %d, want %d", got.Cmd, wireCmdAuthenticate)
	}
	if got.UPN != p.UPN {
		t.Errorf("UPN = %q, want %q", got.UPN, p.UPN)
	}
	if !bytes.Equal(got.AuthTok, p.AuthTok) {
		t.Errorf("AuthTok = %q, want %q", got.AuthTok, p.AuthTok)
	}
	if len(got.NewAuthTok) != 0 {
		t.Errorf("NewAuthTok = %q, want empty for AUTHENTICATE", got.NewAuthTok)
	}
}

func TestEncodeRequestRoundTripChauthtok(t *testing.T) {
	p := &ssspd.PAMPayload{
		Cmd:        ssspd.PAMChauthtok,
		UPN:        "bob@EXAMPLE.COM",
		AuthTok:    []byte("old"),
		NewAuthTok: []byte("newpass"),
	}
	buf := EncodeRequest(p)

	got, err := DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if got.Cmd != wireCmdChauthtok {
		t.Errorf("Cmd = %d, want %d", got.Cmd, wireCmdChauthtok)
	}
	if !bytes.Equal(got.NewAuthTok, p.NewAuthTok) {
		t.Errorf("NewAuthTok = %q, want %q", got.NewAuthTok, p.NewAuthTok)
	}
}

func TestDecodeReplyRoundTrip(t *testing.T) {
	msg := []byte("authentication succeeded")
	buf := EncodeReply(0, int32(ssspd.PAMTextMsg), msg)

	status, msgType, got, err := DecodeReply(buf)
	if err != nil {
		t.Fatalf("DecodeReply() error = %v", err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if msgType != int32(ssspd.PAMTextMsg) {
		t.Errorf("msgType = %d, want %d", msgType, ssspd.PAMTextMsg)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("msg = %q, want %q", got, msg)
	}
}

func TestDecodeReplyRejectsShortMessage(t *testing.T) {
	_, _, _, err := DecodeReply([]byte{1, 2, 3})
	if err == nil {
		t.Errorf("DecodeReply() with < 12 bytes did not error")
	}
}

func TestDecodeReplyRejectsLengthMismatch(t *testing.T) {
	buf := EncodeReply(0, 1, []byte("hello"))
	buf = buf[:len(buf)-1] // truncate one byte off the declared msg_len
	_, _, _, err := DecodeReply(buf)
	if err == nil {
		t.Errorf("DecodeReply() with mismatched msg_len did not error")
	}
}
