package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// MagicBytes identifies a binary artifact written by this pipeline.
const (
	MagicBytes    uint32 = 0x54544d41
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
)

// Kind tags the payload of a binary artifact so a dictionary can never be
// loaded as a bigram model.
type Kind uint32

const (
	KindBigram Kind = iota + 1
	KindDictionary
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindBigram:
		return "bigram"
	case KindDictionary:
		return "dictionary"
	case KindModel:
		return "model"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ErrCorrupt is returned when an artifact fails its header or checksum check.
var ErrCorrupt = errors.New("corrupt artifact")

// Header is the fixed-size prefix of every binary artifact.
type Header struct {
	Magic      uint32
	Version    uint32
	Kind       Kind
	Checksum   uint32
	PayloadLen uint64
	CreatedAt  int64
}

// Encode wraps payload in a header carrying its kind, length and CRC32.
func Encode(kind Kind, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(kind))
	binary.LittleEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(payload)))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(time.Now().Unix()))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ReadHeader parses the header of data without validating the payload.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		Kind:       Kind(binary.LittleEndian.Uint32(data[8:12])),
		Checksum:   binary.LittleEndian.Uint32(data[12:16]),
		PayloadLen: binary.LittleEndian.Uint64(data[16:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(data[24:32])),
	}
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// Decode validates data as an artifact of the given kind and returns its
// payload.
func Decode(kind Kind, data []byte) ([]byte, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s artifact, found %s", ErrCorrupt, kind, h.Kind)
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.PayloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), h.PayloadLen)
	}
	if crc32.ChecksumIEEE(payload) != h.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return payload, nil
}
