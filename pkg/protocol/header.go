// Package protocol implements the memcached binary protocol on top of the
// cluster operation contract.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
)

const HeaderSize = 24

const (
	MagicRequest  uint8 = 0x80
	MagicResponse uint8 = 0x81
)

// MaxKeyLength is the longest key a memcached server accepts.
const MaxKeyLength = 250

type Opcode uint8

const (
	OpGet        Opcode = 0x00
	OpSet        Opcode = 0x01
	OpAdd        Opcode = 0x02
	OpReplace    Opcode = 0x03
	OpDelete     Opcode = 0x04
	OpIncrement  Opcode = 0x05
	OpDecrement  Opcode = 0x06
	OpQuit       Opcode = 0x07
	OpFlush      Opcode = 0x08
	OpGetQ       Opcode = 0x09
	OpNoOp       Opcode = 0x0a
	OpVersion    Opcode = 0x0b
	OpGetK       Opcode = 0x0c
	OpGetKQ      Opcode = 0x0d
	OpAppend     Opcode = 0x0e
	OpPrepend    Opcode = 0x0f
	OpStat       Opcode = 0x10
	OpSetQ       Opcode = 0x11
	OpAddQ       Opcode = 0x12
	OpReplaceQ   Opcode = 0x13
	OpDeleteQ    Opcode = 0x14
	OpIncrementQ Opcode = 0x15
	OpDecrementQ Opcode = 0x16
	OpQuitQ      Opcode = 0x17
	OpFlushQ     Opcode = 0x18
)

// Quiet reports whether the server suppresses the success reply for op.
func (op Opcode) Quiet() bool {
	switch op {
	case OpGetQ, OpGetKQ, OpSetQ, OpAddQ, OpReplaceQ, OpDeleteQ,
		OpIncrementQ, OpDecrementQ, OpQuitQ, OpFlushQ:
		return true
	}
	return false
}

type Status uint16

const (
	StatusNoError          Status = 0x0000
	StatusKeyNotFound      Status = 0x0001
	StatusKeyExists        Status = 0x0002
	StatusValueTooLarge    Status = 0x0003
	StatusInvalidArguments Status = 0x0004
	StatusItemNotStored    Status = 0x0005
	StatusNonNumeric       Status = 0x0006
	StatusUnknownCommand   Status = 0x0081
	StatusOutOfMemory      Status = 0x0082
)

var ErrBadMagic = errors.New("bad magic byte")

// Header is the fixed 24-byte prefix of every packet. Status doubles as the
// vbucket id in requests.
type Header struct {
	Magic     uint8
	Opcode    Opcode
	KeyLen    uint16
	ExtrasLen uint8
	DataType  uint8
	Status    Status
	BodyLen   uint32
	Opaque    uint32
	CAS       uint64
}

// Encode writes h into b, which must hold at least HeaderSize bytes.
func (h Header) Encode(b []byte) {
	b[0] = h.Magic
	b[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(b[2:4], h.KeyLen)
	b[4] = h.ExtrasLen
	b[5] = h.DataType
	binary.BigEndian.PutUint16(b[6:8], uint16(h.Status))
	binary.BigEndian.PutUint32(b[8:12], h.BodyLen)
	binary.BigEndian.PutUint32(b[12:16], h.Opaque)
	binary.BigEndian.PutUint64(b[16:24], h.CAS)
}

// DecodeHeader parses b and checks that the magic byte is magic and the
// lengths are consistent.
func DecodeHeader(b []byte, magic uint8) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header of %d bytes", cluster.ErrProtocol, len(b))
	}
	h := Header{
		Magic:     b[0],
		Opcode:    Opcode(b[1]),
		KeyLen:    binary.BigEndian.Uint16(b[2:4]),
		ExtrasLen: b[4],
		DataType:  b[5],
		Status:    Status(binary.BigEndian.Uint16(b[6:8])),
		BodyLen:   binary.BigEndian.Uint32(b[8:12]),
		Opaque:    binary.BigEndian.Uint32(b[12:16]),
		CAS:       binary.BigEndian.Uint64(b[16:24]),
	}
	if h.Magic != magic {
		return h, fmt.Errorf("%w: %w 0x%02x", cluster.ErrProtocol, ErrBadMagic, h.Magic)
	}
	if uint32(h.KeyLen)+uint32(h.ExtrasLen) > h.BodyLen {
		return h, fmt.Errorf("%w: key and extras exceed body length %d", cluster.ErrProtocol, h.BodyLen)
	}
	return h, nil
}
