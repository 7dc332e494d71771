package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Source RCON packet types.
const (
	TypeResponse int32 = 0
	TypeCommand  int32 = 2
	TypeLogin    int32 = 3
)

// MaxPayloadSize is the largest payload the protocol accepts in a single
// packet. Longer responses arrive fragmented across several packets.
const MaxPayloadSize = 4096

// packet body = requestId(4) + type(4) + payload + two null terminators.
const headerSize = 8
const terminatorSize = 2

var ErrPayloadTooLarge = errors.New("rcon: payload exceeds maximum packet size")

type Packet struct {
	RequestID int32
	Type      int32
	Payload   []byte
}

// Encode serializes p as length:int32LE | requestId:int32LE | type:int32LE |
// payload | 0x00 0x00, where length counts everything after itself.
func Encode(p Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	length := int32(headerSize + len(p.Payload) + terminatorSize)
	buf := make([]byte, 0, 4+length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(length))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.RequestID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Type))
	buf = append(buf, p.Payload...)
	buf = append(buf, 0x00, 0x00)
	return buf, nil
}

// Decode parses a complete packet, length field included.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < 4+headerSize+terminatorSize {
		return Packet{}, malformed("packet shorter than minimum frame")
	}

	length := int32(binary.LittleEndian.Uint32(raw[0:4]))
	if int(length) != len(raw)-4 {
		return Packet{}, malformed("length field does not match frame size")
	}
	if raw[len(raw)-2] != 0x00 || raw[len(raw)-1] != 0x00 {
		return Packet{}, malformed("missing null terminators")
	}

	return Packet{
		RequestID: int32(binary.LittleEndian.Uint32(raw[4:8])),
		Type:      int32(binary.LittleEndian.Uint32(raw[8:12])),
		Payload:   raw[12 : len(raw)-2],
	}, nil
}

func malformed(detail string) *Error {
	return &Error{Kind: KindMalformedPacket, Detail: detail}
}

// Assembler concatenates fragmented response payloads for one request id.
// Completion is signaled by a sentinel packet carrying a distinct request id;
// callers that never see the sentinel finalize on read timeout instead.
type Assembler struct {
	requestID  int32
	sentinelID int32
	buf        bytes.Buffer
	received   bool
}

func NewAssembler(requestID, sentinelID int32) *Assembler {
	return &Assembler{requestID: requestID, sentinelID: sentinelID}
}

// Add feeds one decoded packet and reports whether the response is complete.
func (a *Assembler) Add(p Packet) bool {
	if p.RequestID == a.sentinelID {
		return true
	}
	if p.RequestID == a.requestID && p.Type == TypeResponse {
		a.buf.Write(p.Payload)
		a.received = true
	}
	return false
}

// Received reports whether at least one response fragment has arrived.
func (a *Assembler) Received() bool { return a.received }

func (a *Assembler) Payload() string { return a.buf.String() }
