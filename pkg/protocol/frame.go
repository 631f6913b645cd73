package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"
)

const (
	// MaxFrameSize is the maximum allowed frame size (1 MB)
	MaxFrameSize = 1024 * 1024

	// ProtocolVersion is the envelope format version
	ProtocolVersion = 1

	// CompressionThreshold is the minimum payload size to consider compression (512 bytes)
	CompressionThreshold = 512

	frameHeaderSize = 3 // version + type + flags
)

// Flag constants
const (
	FlagCompressed = 0x01 // Bit 0: payload is LZ4 compressed
)

var (
	ErrFrameTooLarge        = errors.New("frame exceeds maximum size (1 MB)")
	ErrInvalidVersion       = errors.New("invalid protocol version")
	ErrInvalidFrameLength   = errors.New("invalid frame length")
	ErrDecompressionFailed  = errors.New("decompression failed")
	ErrInvalidCompressedLen = errors.New("invalid compressed payload length")
)

// Frame is the serialized form of one envelope.
// Format: [Length (4 bytes)][Version (1 byte)][Type (1 byte)][Flags (1 byte)][Payload (N bytes)]
// Length counts everything after itself.
type Frame struct {
	Version uint8
	Type    uint8 // body variant
	Flags   uint8
	Payload []byte
}

// CompressPayload compresses data using LZ4 and prepends the uncompressed size.
// Format: [Uncompressed Size (4 bytes, big-endian)][LZ4 block]
// The second return is false when compression would not save space.
func CompressPayload(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return data, false
	}

	compressed := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(compressed[:4], uint32(len(data)))

	n, err := lz4.CompressBlock(data, compressed[4:], nil)
	if err != nil || n == 0 {
		// incompressible
		return data, false
	}
	if 4+n >= len(data) {
		return data, false
	}
	return compressed[:4+n], true
}

// DecompressPayload reverses CompressPayload
func DecompressPayload(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrInvalidCompressedLen
	}

	size := binary.BigEndian.Uint32(data[:4])
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil || n != int(size) {
		return nil, ErrDecompressionFailed
	}
	return out, nil
}

// EncodeFrame writes f to w, compressing payloads of at least
// CompressionThreshold bytes when that saves space
func EncodeFrame(w io.Writer, f *Frame) error {
	payload := f.Payload
	flags := f.Flags

	if len(payload) >= CompressionThreshold && flags&FlagCompressed == 0 {
		if compressed, ok := CompressPayload(payload); ok {
			payload = compressed
			flags |= FlagCompressed
		}
	}

	length := uint32(frameHeaderSize + len(payload))
	if length > MaxFrameSize {
		return ErrFrameTooLarge
	}

	if err := WriteUint32(w, length); err != nil {
		return err
	}
	if _, err := w.Write([]byte{f.Version, f.Type, flags}); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFrame reads one frame from r and decompresses its payload
func DecodeFrame(r io.Reader) (*Frame, error) {
	length, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	if length < frameHeaderSize {
		return nil, ErrInvalidFrameLength
	}

	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, length-frameHeaderSize)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	flags := header[2]
	if flags&FlagCompressed != 0 && len(payload) > 0 {
		payload, err = DecompressPayload(payload)
		if err != nil {
			return nil, err
		}
		flags &^= FlagCompressed
	}

	return &Frame{
		Version: header[0],
		Type:    header[1],
		Flags:   flags,
		Payload: payload,
	}, nil
}

// EncodeMessage encodes a frame to a byte slice
func EncodeMessage(msgType uint8, payload []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	frame := &Frame{Version: ProtocolVersion, Type: msgType, Payload: payload}
	if err := EncodeFrame(buf, frame); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage decodes a single frame from data. Bytes after the frame are an error.
func DecodeMessage(data []byte) (*Frame, error) {
	r := bytes.NewReader(data)
	frame, err := DecodeFrame(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrInvalidFrameLength
	}
	if frame.Version != ProtocolVersion {
		return nil, ErrInvalidVersion
	}
	return frame, nil
}
