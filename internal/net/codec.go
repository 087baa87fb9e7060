package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/tilerealm/server/internal/net/packet"
)

// maxBodySize bounds a decompressed payload.
const maxBodySize = 1 << 20

var (
	ErrMissingSequence = errors.New("frame flagged with sequence but too short")
	ErrBodyTooLarge    = errors.New("decompressed body too large")
	ErrSessionClosed   = errors.New("session closed")
)

// Inbound is one received frame split into its parts. Payload is still
// compressed when Header.Compressed() is set.
type Inbound struct {
	Header  packet.Header
	Seq     uint16
	Payload []byte
}

// FrameCodec builds and splits frames and owns the zstd coders used for the
// compressed flag.
type FrameCodec struct {
	threshold int
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// NewFrameCodec returns a codec that compresses outbound bodies of at least
// threshold bytes. A threshold of 0 disables outbound compression; inbound
// compressed frames are always accepted.
func NewFrameCodec(threshold int) (*FrameCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxBodySize),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &FrameCodec{threshold: threshold, enc: enc, dec: dec}, nil
}

func (c *FrameCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Encode frames body without a sequence number.
func (c *FrameCodec) Encode(typ, version uint8, body []byte) ([]byte, error) {
	return c.encode(typ, version, 0, 0, body)
}

// EncodeSeq frames body with a sequence prefix.
func (c *FrameCodec) EncodeSeq(typ, version uint8, seq uint16, body []byte) ([]byte, error) {
	return c.encode(typ, version, packet.FlagHasSequence, seq, body)
}

func (c *FrameCodec) encode(typ, version, flags uint8, seq uint16, body []byte) ([]byte, error) {
	if c.threshold > 0 && len(body) >= c.threshold {
		if z := c.enc.EncodeAll(body, nil); len(z) < len(body) {
			body = z
			flags |= packet.FlagCompressed
		}
	}
	size := packet.HeaderSize + len(body)
	var prefix []byte
	if flags&packet.FlagHasSequence != 0 {
		size += packet.SequenceSize
		prefix = binary.LittleEndian.AppendUint16(make([]byte, 0, packet.SequenceSize+len(body)), seq)
		body = append(prefix, body...)
	}
	return packet.AppendFrame(make([]byte, 0, size), typ, version, flags, body)
}

// Split parses the header and peels off the sequence prefix. It does not
// decompress, so replayed frames can be rejected cheaply.
func (c *FrameCodec) Split(data []byte) (Inbound, error) {
	h, payload, err := packet.ParseFrame(data)
	if err != nil {
		return Inbound{}, err
	}
	in := Inbound{Header: h, Payload: payload}
	if h.HasSequence() {
		if len(payload) < packet.SequenceSize {
			return Inbound{}, ErrMissingSequence
		}
		in.Seq = binary.LittleEndian.Uint16(payload)
		in.Payload = payload[packet.SequenceSize:]
	}
	return in, nil
}

// Body returns the decompressed payload of in.
func (c *FrameCodec) Body(in Inbound) ([]byte, error) {
	if !in.Header.Compressed() {
		return in.Payload, nil
	}
	out, err := c.dec.DecodeAll(in.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", packet.TypeName(in.Header.Type), err)
	}
	if len(out) > maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return out, nil
}
