package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed frame header: length(2) type(1) version(1) flags(1).
	HeaderSize = 5
	// MaxFrameSize is the largest frame the 16-bit length can describe.
	MaxFrameSize = 0xFFFF
	// SequenceSize is the sequence prefix carried when FlagHasSequence is set.
	SequenceSize = 2
)

// Frame flag bits.
const (
	FlagCompressed  uint8 = 0x01
	FlagHasSequence uint8 = 0x02
)

var (
	ErrShortFrame    = errors.New("frame shorter than header")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrBadLength     = errors.New("frame length does not match datagram")
)

// Header is the decoded 5-byte frame header.
type Header struct {
	Length  uint16 // total frame length including the header
	Type    uint8
	Version uint8
	Flags   uint8
}

func (h Header) Compressed() bool  { return h.Flags&FlagCompressed != 0 }
func (h Header) HasSequence() bool { return h.Flags&FlagHasSequence != 0 }

// AppendFrame appends a complete frame (header + body) to dst.
func AppendFrame(dst []byte, typ, version, flags uint8, body []byte) ([]byte, error) {
	total := HeaderSize + len(body)
	if total > MaxFrameSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(total))
	dst = append(dst, typ, version, flags)
	return append(dst, body...), nil
}

// ParseFrame splits one frame into its header and body. The body aliases
// data. Trailing bytes beyond the declared length are an error: one
// datagram or message carries exactly one frame.
func ParseFrame(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, ErrShortFrame
	}
	h := Header{
		Length:  binary.LittleEndian.Uint16(data),
		Type:    data[2],
		Version: data[3],
		Flags:   data[4],
	}
	if int(h.Length) != len(data) || h.Length < HeaderSize {
		return h, nil, fmt.Errorf("%w: header says %d, got %d", ErrBadLength, h.Length, len(data))
	}
	return h, data[HeaderSize:], nil
}
