package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

var (
	ErrStringTooLong = errors.New("string exceeds maximum length (65535 bytes)")
	ErrListTooLong   = errors.New("list exceeds maximum length (65535 items)")
)

func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func WriteUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func WriteInt64(w io.Writer, v int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	_, err := w.Write(b[:])
	return err
}

func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 1)
	}
	return WriteUint8(w, 0)
}

// WriteString writes a uint16 length followed by the UTF-8 bytes
func WriteString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	if err := WriteUint16(w, uint16(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := io.WriteString(w, s)
	return err
}

// WriteOptionalString writes a presence byte and, if present, the string
func WriteOptionalString(w io.Writer, s *string) error {
	if err := WriteBool(w, s != nil); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	return WriteString(w, *s)
}

// WriteStrings writes a uint16 count followed by each string
func WriteStrings(w io.Writer, list []string) error {
	if len(list) > math.MaxUint16 {
		return ErrListTooLong
	}
	if err := WriteUint16(w, uint16(len(list))); err != nil {
		return err
	}
	for _, s := range list {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// WriteTimestamp writes t as Unix milliseconds
func WriteTimestamp(w io.Writer, t time.Time) error {
	return WriteInt64(w, t.UnixMilli())
}

// WriteOptionalTimestamp writes a presence byte and, if present, the timestamp
func WriteOptionalTimestamp(w io.Writer, t *time.Time) error {
	if err := WriteBool(w, t != nil); err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	return WriteTimestamp(w, *t)
}

func WriteKey(w io.Writer, key [KeySize]byte) error {
	_, err := w.Write(key[:])
	return err
}

func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func ReadInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func ReadBool(r io.Reader) (bool, error) {
	v, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func ReadOptionalString(r io.Reader) (*string, error) {
	present, err := ReadBool(r)
	if err != nil || !present {
		return nil, err
	}
	s, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func ReadStrings(r io.Reader) ([]string, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

func ReadTimestamp(r io.Reader) (time.Time, error) {
	ms, err := ReadInt64(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func ReadOptionalTimestamp(r io.Reader) (*time.Time, error) {
	present, err := ReadBool(r)
	if err != nil || !present {
		return nil, err
	}
	t, err := ReadTimestamp(r)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ReadKey(r io.Reader) ([KeySize]byte, error) {
	var key [KeySize]byte
	_, err := io.ReadFull(r, key[:])
	return key, err
}
