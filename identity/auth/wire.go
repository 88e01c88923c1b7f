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

// Package auth implements the Auth pipeline (C6, 4.6), the Child supervisor
// (C7, 4.7) and the offline-password cache hook (C8, 4.8), grounded on
// original_source's server/providers/krb5/krb5_auth.c.
package auth

import (
	"bytes"
	"encoding/binary"
	"fmt"

	ssspd "stash.kopano.io/kc/ssspd/identity"
)

// MaxChildMsgSize bounds the reply a helper child may send back, per 6.2.
const MaxChildMsgSize = 64 * 1024

const (
	wireCmdAuthenticate uint32 = 0
	wireCmdChauthtok    uint32 = 1
)

// EncodeRequest builds the framed request buffer of 6.2: cmd, upn (length
// prefixed), authtok (length prefixed), and for CHAUTHTOK a length-prefixed
// newauthtok, all little-endian, grounded on krb5_auth.c's
// create_send_buffer().
func EncodeRequest(p *ssspd.PAMPayload) []byte {
	buf := new(bytes.Buffer)

	cmd := wireCmdAuthenticate
	if p.Cmd == ssspd.PAMChauthtok {
		cmd = wireCmdChauthtok
	}
	binary.Write(buf, binary.LittleEndian, cmd)

	writeLV(buf, []byte(p.UPN))
	writeLV(buf, p.AuthTok)
	if p.Cmd == ssspd.PAMChauthtok {
		writeLV(buf, p.NewAuthTok)
	}

	return buf.Bytes()
}

func writeLV(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
}

// DecodedRequest is what a compliant parser on the child side consumes,
// used by this package's round-trip test to verify EncodeRequest produces
// exactly that layout (8's round-trip property).
type DecodedRequest struct {
	Cmd        uint32
	UPN        string
	AuthTok    []byte
	NewAuthTok []byte
}

// DecodeRequest parses a buffer produced by EncodeRequest.
func DecodeRequest(buf []byte) (*DecodedRequest, error) {
	r := bytes.NewReader(buf)
	var cmd uint32
	if err := binary.Read(r, binary.LittleEndian, &cmd); err != nil {
		return nil, fmt.Errorf("auth wire: short request: %v", err)
	}

	upn, err := readLV(r)
	if err != nil {
		return nil, fmt.Errorf("auth wire: %v", err)
	}
	authtok, err := readLV(r)
	if err != nil {
		return nil, fmt.Errorf("auth wire: %v", err)
	}

	out := &DecodedRequest{Cmd: cmd, UPN: string(upn), AuthTok: authtok}

	if cmd == wireCmdChauthtok {
		newAuthtok, err := readLV(r)
		if err != nil {
			return nil, fmt.Errorf("auth wire: %v", err)
		}
		out.NewAuthTok = newAuthtok
	}

	return out, nil
}

func readLV(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// DecodeReply parses a single reply message per 6.2: the reply is rejected
// if len < 12 or if 12 + msg_len != len.
func DecodeReply(buf []byte) (pamStatus int32, msgType int32, msg []byte, err error) {
	if len(buf) < 12 {
		return 0, 0, nil, fmt.Errorf("auth wire: reply too short (%d bytes)", len(buf))
	}

	pamStatus = int32(binary.LittleEndian.Uint32(buf[0:4]))
	msgType = int32(binary.LittleEndian.Uint32(buf[4:8]))
	msgLen := int32(binary.LittleEndian.Uint32(buf[8:12]))

	if 12+int(msgLen) != len(buf) {
		return 0, 0, nil, fmt.Errorf("auth wire: message format error")
	}

	return pamStatus, msgType, buf[12 : 12+int(msgLen)], nil
}

// EncodeReply is the inverse of DecodeReply, used by tests standing in for
// the helper child.
func EncodeReply(pamStatus int32, msgType int32, msg []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, pamStatus)
	binary.Write(buf, binary.LittleEndian, msgType)
	binary.Write(buf, binary.LittleEndian, int32(len(msg)))
	buf.Write(msg)
	return buf.Bytes()
}
