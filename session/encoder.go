package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// CurrentSchemaVersion is the first byte of every encoded identity.
// Blobs written as v1 still decode.
const CurrentSchemaVersion = 2

const (
	schemaV1 = 1

	maxStringLen = 1 << 16
	maxListLen   = 1 << 10
)

// ErrUnsupportedSchema is returned by Decode for an unknown version byte.
var ErrUnsupportedSchema = errors.New("unsupported session schema version")

// Encode serializes id into the compact binary form stored in Redis.
//
//	v2: ver | userID i64 | identity s | role s | active u8 | remember u8 |
//	    idleTTL u32 secs | establishedAt i64 | roles n s* | details n (s s)*
//
// n and every string length are uvarints. v1 used single length bytes.
func Encode(id *Identity) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	if err := binary.Write(&buf, binary.BigEndian, id.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "identity", id.Identity); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "role", id.Role); err != nil {
		return nil, err
	}
	buf.WriteByte(boolByte(id.Active))
	buf.WriteByte(boolByte(id.RememberMe))

	secs := id.IdleTTL / time.Second
	if secs < 0 || secs > 1<<32-1 {
		return nil, errors.New("idle ttl out of range")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(secs)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, id.EstablishedAt); err != nil {
		return nil, err
	}

	if len(id.Roles) > maxListLen {
		return nil, errors.New("too many roles")
	}
	writeLen(&buf, len(id.Roles))
	for _, r := range id.Roles {
		if err := writeString(&buf, "role", r); err != nil {
			return nil, err
		}
	}

	if len(id.Details) > maxListLen {
		return nil, errors.New("too many details")
	}
	keys := make([]string, 0, len(id.Details))
	for k := range id.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeLen(&buf, len(keys))
	for _, k := range keys {
		if err := writeString(&buf, "detail key", k); err != nil {
			return nil, err
		}
		if err := writeString(&buf, "detail value", id.Details[k]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Identity, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	var readLen func(*bytes.Reader) (int, error)
	switch version {
	case CurrentSchemaVersion:
		readLen = readUvarintLen
	case schemaV1:
		readLen = readByteLen
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	id := &Identity{}
	if err := binary.Read(reader, binary.BigEndian, &id.UserID); err != nil {
		return nil, err
	}
	if id.Identity, err = readString(reader, readLen); err != nil {
		return nil, err
	}
	if id.Role, err = readString(reader, readLen); err != nil {
		return nil, err
	}

	active, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	remember, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	id.Active = active == 1
	id.RememberMe = remember == 1

	var secs uint32
	if err := binary.Read(reader, binary.BigEndian, &secs); err != nil {
		return nil, err
	}
	id.IdleTTL = time.Duration(secs) * time.Second
	if err := binary.Read(reader, binary.BigEndian, &id.EstablishedAt); err != nil {
		return nil, err
	}

	n, err := readLen(reader)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		id.Roles = make([]string, 0, n)
	}
	for i := 0; i < n; i++ {
		r, err := readString(reader, readLen)
		if err != nil {
			return nil, err
		}
		id.Roles = append(id.Roles, r)
	}

	n, err = readLen(reader)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		id.Details = make(map[string]string, n)
	}
	for i := 0; i < n; i++ {
		k, err := readString(reader, readLen)
		if err != nil {
			return nil, err
		}
		v, err := readString(reader, readLen)
		if err != nil {
			return nil, err
		}
		id.Details[k] = v
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}
	return id, nil
}

func writeString(buf *bytes.Buffer, what, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("%s too long", what)
	}
	writeLen(buf, len(s))
	buf.WriteString(s)
	return nil
}

func writeLen(buf *bytes.Buffer, n int) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutUvarint(tmp[:], uint64(n))])
}

func readString(r *bytes.Reader, readLen func(*bytes.Reader) (int, error)) (string, error) {
	n, err := readLen(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// readUvarintLen bounds the length by the unread input so a corrupt blob
// cannot force a large allocation.
func readUvarintLen(r *bytes.Reader) (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}

func readByteLen(r *bytes.Reader) (int, error) {
	n, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
