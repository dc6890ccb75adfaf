// Package api implements the length-prefixed binary client wire protocol
// of §6: PUT/GET requests in, SUCC/FAIL replies out, over a plain TCP
// stream — grounded on original_source/src/api/{controller,service}.py's
// struct.pack(">HH", size, type) framing, translated from asyncio's
// Protocol callback style to a blocking net.Conn read loop.
package api

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message type codes, per §6's wire table.
const (
	TypePut  uint16 = 650
	TypeGet  uint16 = 651
	TypeSucc uint16 = 652
	TypeFail uint16 = 653
)

// KeySize is the fixed width, in bytes, of the key field on the wire —
// the client's own key, NUL-padded to this width and hashed onto the
// ring only after decoding, independent of the configured ring size
// (§6's frame table fixes it at 32).
const KeySize = 32

const headerSize = 4 // size:u16 + type:u16

// PutFrame is the decoded payload of a PUT request.
type PutFrame struct {
	TTL         uint16
	Replication uint8
	Key         string
	Value       []byte
}

// GetFrame is the decoded payload of a GET request.
type GetFrame struct {
	Key string
}

// readFull reads exactly n bytes or returns an error, treating a short
// read on connection close the same as any other malformed-frame error.
func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFrame blocks for one full frame on r: the 4-byte header followed
// by size-4 bytes of body. A declared size smaller than the minimum
// header width is rejected outright; anything else relies on the stream
// actually containing that many bytes, which io.ReadFull enforces — a
// connection that closes mid-frame surfaces as an error here, the moral
// equivalent of the source's explicit size-mismatch check on a complete
// datagram.
func ReadFrame(r io.Reader) (msgType uint16, body []byte, err error) {
	header, err := readFull(r, headerSize)
	if err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint16(header[0:2])
	msgType = binary.BigEndian.Uint16(header[2:4])
	if size < headerSize {
		return 0, nil, fmt.Errorf("api: declared size %d smaller than header", size)
	}
	body, err = readFull(r, int(size)-headerSize)
	if err != nil {
		return 0, nil, fmt.Errorf("api: short frame body: %w", err)
	}
	return msgType, body, nil
}

// DecodePut parses a PUT body: ttl:u16 replication:u8 reserved:u8 key:32B value:bytes.
func DecodePut(body []byte) (PutFrame, error) {
	if len(body) < 4+KeySize {
		return PutFrame{}, fmt.Errorf("api: PUT body too short: %d bytes", len(body))
	}
	ttl := binary.BigEndian.Uint16(body[0:2])
	repl := body[2]
	// body[3] is reserved.
	key := unpadKey(body[4 : 4+KeySize])
	value := append([]byte(nil), body[4+KeySize:]...)
	return PutFrame{TTL: ttl, Replication: repl, Key: key, Value: value}, nil
}

// DecodeGet parses a GET body: key:32B.
func DecodeGet(body []byte) (GetFrame, error) {
	if len(body) < KeySize {
		return GetFrame{}, fmt.Errorf("api: GET body too short: %d bytes", len(body))
	}
	return GetFrame{Key: unpadKey(body[:KeySize])}, nil
}

// unpadKey strips the trailing NUL padding a fixed-width key field
// carries on the wire, recovering the logical key a client sent.
func unpadKey(field []byte) string {
	end := len(field)
	for end > 0 && field[end-1] == 0 {
		end--
	}
	return string(field[:end])
}

func encodeHeader(totalSize int, msgType uint16) []byte {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], uint16(totalSize))
	binary.BigEndian.PutUint16(header[2:4], msgType)
	return header
}

// EncodeSucc builds a SUCC reply: key:32B value:bytes.
func EncodeSucc(key string, value []byte) []byte {
	keyField := padKey(key)
	out := encodeHeader(headerSize+len(keyField)+len(value), TypeSucc)
	out = append(out, keyField...)
	out = append(out, value...)
	return out
}

// EncodeFail builds a FAIL reply: key:32B.
func EncodeFail(key string) []byte {
	keyField := padKey(key)
	out := encodeHeader(headerSize+len(keyField), TypeFail)
	return append(out, keyField...)
}

// padKey truncates or zero-pads key to exactly KeySize bytes so it
// round-trips through the fixed-width wire field.
func padKey(key string) []byte {
	out := make([]byte, KeySize)
	copy(out, key)
	return out
}
