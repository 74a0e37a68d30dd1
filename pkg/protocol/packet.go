package protocol

import (
	"fmt"

	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
)

// DefaultMaxValueSize is memcached's default item size limit.
const DefaultMaxValueSize = 1 << 20

// bodyOverhead covers the key and extras that travel with a value.
const bodyOverhead = MaxKeyLength + 255

// Request is an outgoing packet. It is encoded on the first WriteTo and then
// copied out across as many buffer fills as it takes.
type Request struct {
	Header
	Extras []byte
	Key    []byte
	Value  []byte

	encoded []byte
	offset  int
}

func NewRequest(op Opcode, extras, key, value []byte, opaque uint32, cas uint64) *Request {
	return &Request{
		Header: Header{
			Magic:     MagicRequest,
			Opcode:    op,
			KeyLen:    uint16(len(key)),
			ExtrasLen: uint8(len(extras)),
			BodyLen:   uint32(len(extras) + len(key) + len(value)),
			Opaque:    opaque,
			CAS:       cas,
		},
		Extras: extras,
		Key:    key,
		Value:  value,
	}
}

// WriteTo copies the unwritten part of the packet into buf.
func (r *Request) WriteTo(buf *cluster.WriteBuffer) bool {
	if r.encoded == nil {
		r.encoded = r.Bytes()
	}
	r.offset += buf.Write(r.encoded[r.offset:])
	return r.offset < len(r.encoded)
}

// Bytes returns the whole encoded packet.
func (r *Request) Bytes() []byte {
	b := make([]byte, HeaderSize+int(r.BodyLen))
	r.Header.Encode(b)
	n := copy(b[HeaderSize:], r.Extras)
	n += copy(b[HeaderSize+n:], r.Key)
	copy(b[HeaderSize+n:], r.Value)
	return b
}

// Response is an incoming packet parsed incrementally: the header and body
// may each span several buffer fills.
type Response struct {
	Header
	Extras []byte
	Key    []byte
	Value  []byte

	head     [HeaderSize]byte
	headRead int
	body     []byte
	bodyRead int
	parsed   bool
	maxBody  uint32
}

// NewResponse is the response factory handed to the cluster. Bodies larger
// than DefaultMaxValueSize plus key and extras are rejected.
func NewResponse() cluster.Response {
	return &Response{maxBody: DefaultMaxValueSize + bodyOverhead}
}

// NewResponseFactory returns a response factory accepting values up to
// maxValue bytes. A non-positive maxValue means DefaultMaxValueSize.
func NewResponseFactory(maxValue int) func() cluster.Response {
	if maxValue <= 0 {
		maxValue = DefaultMaxValueSize
	}
	maxBody := uint32(min(int64(maxValue)+bodyOverhead, int64(^uint32(0))))
	return func() cluster.Response {
		return &Response{maxBody: maxBody}
	}
}

func (r *Response) ReadFrom(buf *cluster.ReadBuffer) (bool, error) {
	if !r.parsed {
		r.headRead += buf.Read(r.head[r.headRead:])
		if r.headRead < HeaderSize {
			return true, nil
		}
		h, err := DecodeHeader(r.head[:], MagicResponse)
		if err != nil {
			return false, err
		}
		if r.maxBody > 0 && h.BodyLen > r.maxBody {
			return false, fmt.Errorf("%w: body length %d exceeds limit %d", cluster.ErrProtocol, h.BodyLen, r.maxBody)
		}
		r.Header = h
		r.body = make([]byte, h.BodyLen)
		r.parsed = true
	}

	r.bodyRead += buf.Read(r.body[r.bodyRead:])
	if r.bodyRead < len(r.body) {
		return true, nil
	}

	extras := int(r.ExtrasLen)
	key := extras + int(r.KeyLen)
	r.Extras = r.body[:extras:extras]
	r.Key = r.body[extras:key:key]
	r.Value = r.body[key:]
	return false, nil
}

func (r *Response) Status() uint16 {
	return uint16(r.Header.Status)
}
