// Package memtest runs an in-memory memcached binary protocol server for
// tests.
package memtest

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	"github.com/anthanhphan/gosdk/logger"
)

const version = "1.6.0-memtest"

type item struct {
	value []byte
	flags uint32
	cas   uint64
}

// Server keeps items in a map and answers on every accepted connection.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	items    map[string]item
	casSeq   uint64
	requests []protocol.Opcode
	conns    map[net.Conn]struct{}
	accepted int
	closed   bool

	wg sync.WaitGroup
}

// Start listens on addr; an empty addr picks a free loopback port.
func Start(addr string) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:    ln,
		items: make(map[string]item),
		conns: make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops listening and drops every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// DropConnections closes open connections but keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Value returns the stored value of key.
func (s *Server) Value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	return it.value, ok
}

// Len returns the number of stored items.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Requests returns the opcodes received so far, in arrival order.
func (s *Server) Requests() []protocol.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Opcode(nil), s.requests...)
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	head := make([]byte, protocol.HeaderSize)
	for {
		if _, err := io.ReadFull(r, head); err != nil {
			return
		}
		h, err := protocol.DecodeHeader(head, protocol.MagicRequest)
		if err != nil {
			logger.Warnw("memtest: bad request header", "error", err.Error())
			return
		}
		body := make([]byte, h.BodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return
		}
		req := &protocol.Request{
			Header: h,
			Extras: body[:h.ExtrasLen],
			Key:    body[h.ExtrasLen : int(h.ExtrasLen)+int(h.KeyLen)],
			Value:  body[int(h.ExtrasLen)+int(h.KeyLen):],
		}

		quit := s.handle(w, req)
		// Batch replies to a pipelined burst into one write.
		if r.Buffered() == 0 || quit {
			if err := w.Flush(); err != nil {
				return
			}
		}
		if quit {
			return
		}
	}
}

// handle answers one request and reports whether the connection should end.
func (s *Server) handle(w *bufio.Writer, req *protocol.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req.Opcode)
	quiet := req.Opcode.Quiet()
	key := string(req.Key)

	switch req.Opcode {
	case protocol.OpGet, protocol.OpGetQ, protocol.OpGetK, protocol.OpGetKQ:
		it, ok := s.items[key]
		if !ok {
			if !quiet {
				reply(w, req, protocol.StatusKeyNotFound, nil, nil, []byte("Not found"), 0)
			}
			return false
		}
		var rkey []byte
		if req.Opcode == protocol.OpGetK || req.Opcode == protocol.OpGetKQ {
			rkey = req.Key
		}
		extras := make([]byte, 4)
		binary.BigEndian.PutUint32(extras, it.flags)
		reply(w, req, protocol.StatusNoError, extras, rkey, it.value, it.cas)

	case protocol.OpSet, protocol.OpSetQ, protocol.OpAdd, protocol.OpAddQ,
		protocol.OpReplace, protocol.OpReplaceQ:
		s.store(w, req, key, quiet)

	case protocol.OpDelete, protocol.OpDeleteQ:
		if _, ok := s.items[key]; !ok {
			reply(w, req, protocol.StatusKeyNotFound, nil, nil, []byte("Not found"), 0)
			return false
		}
		delete(s.items, key)
		if !quiet {
			reply(w, req, protocol.StatusNoError, nil, nil, nil, 0)
		}

	case protocol.OpIncrement, protocol.OpIncrementQ, protocol.OpDecrement, protocol.OpDecrementQ:
		s.mutate(w, req, key, quiet)

	case protocol.OpNoOp:
		reply(w, req, protocol.StatusNoError, nil, nil, nil, 0)

	case protocol.OpFlush, protocol.OpFlushQ:
		s.items = make(map[string]item)
		if !quiet {
			reply(w, req, protocol.StatusNoError, nil, nil, nil, 0)
		}

	case protocol.OpStat:
		if len(req.Key) == 0 {
			reply(w, req, protocol.StatusNoError, nil, []byte("version"), []byte(version), 0)
			reply(w, req, protocol.StatusNoError, nil, []byte("curr_items"), []byte(strconv.Itoa(len(s.items))), 0)
			reply(w, req, protocol.StatusNoError, nil, []byte("total_connections"), []byte(strconv.Itoa(s.accepted)), 0)
		}
		reply(w, req, protocol.StatusNoError, nil, nil, nil, 0)

	case protocol.OpVersion:
		reply(w, req, protocol.StatusNoError, nil, nil, []byte(version), 0)

	case protocol.OpQuit, protocol.OpQuitQ:
		if !quiet {
			reply(w, req, protocol.StatusNoError, nil, nil, nil, 0)
		}
		return true

	default:
		reply(w, req, protocol.StatusUnknownCommand, nil, nil, []byte("Unknown command"), 0)
	}
	return false
}

func (s *Server) store(w *bufio.Writer, req *protocol.Request, key string, quiet bool) {
	if len(req.Extras) != 8 {
		reply(w, req, protocol.StatusInvalidArguments, nil, nil, []byte("Invalid arguments"), 0)
		return
	}
	cur, exists := s.items[key]

	switch {
	case req.CAS != 0 && !exists:
		reply(w, req, protocol.StatusKeyNotFound, nil, nil, []byte("Not found"), 0)
		return
	case req.CAS != 0 && cur.cas != req.CAS:
		reply(w, req, protocol.StatusKeyExists, nil, nil, []byte("Data exists for key."), 0)
		return
	case exists && (req.Opcode == protocol.OpAdd || req.Opcode == protocol.OpAddQ):
		reply(w, req, protocol.StatusKeyExists, nil, nil, []byte("Data exists for key."), 0)
		return
	case !exists && (req.Opcode == protocol.OpReplace || req.Opcode == protocol.OpReplaceQ):
		reply(w, req, protocol.StatusKeyNotFound, nil, nil, []byte("Not found"), 0)
		return
	}

	s.casSeq++
	s.items[key] = item{
		value: append([]byte(nil), req.Value...),
		flags: binary.BigEndian.Uint32(req.Extras[0:4]),
		cas:   s.casSeq,
	}
	if !quiet {
		reply(w, req, protocol.StatusNoError, nil, nil, nil, s.casSeq)
	}
}

func (s *Server) mutate(w *bufio.Writer, req *protocol.Request, key string, quiet bool) {
	if len(req.Extras) != 20 {
		reply(w, req, protocol.StatusInvalidArguments, nil, nil, []byte("Invalid arguments"), 0)
		return
	}
	delta := binary.BigEndian.Uint64(req.Extras[0:8])
	initial := binary.BigEndian.Uint64(req.Extras[8:16])
	expiration := binary.BigEndian.Uint32(req.Extras[16:20])
	decrement := req.Opcode == protocol.OpDecrement || req.Opcode == protocol.OpDecrementQ

	var value uint64
	cur, exists := s.items[key]
	switch {
	case !exists && expiration == protocol.NoCreate:
		reply(w, req, protocol.StatusKeyNotFound, nil, nil, []byte("Not found"), 0)
		return
	case !exists:
		value = initial
	default:
		n, err := strconv.ParseUint(string(cur.value), 10, 64)
		if err != nil {
			reply(w, req, protocol.StatusNonNumeric, nil, nil, []byte("Non-numeric server-side value for incr or decr"), 0)
			return
		}
		switch {
		case !decrement:
			value = n + delta
		case delta > n:
			value = 0
		default:
			value = n - delta
		}
	}

	s.casSeq++
	s.items[key] = item{value: []byte(strconv.FormatUint(value, 10)), flags: cur.flags, cas: s.casSeq}
	if !quiet {
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, value)
		reply(w, req, protocol.StatusNoError, nil, nil, out, s.casSeq)
	}
}

func reply(w *bufio.Writer, req *protocol.Request, status protocol.Status, extras, key, value []byte, cas uint64) {
	h := protocol.Header{
		Magic:     protocol.MagicResponse,
		Opcode:    req.Opcode,
		KeyLen:    uint16(len(key)),
		ExtrasLen: uint8(len(extras)),
		Status:    status,
		BodyLen:   uint32(len(extras) + len(key) + len(value)),
		Opaque:    req.Opaque,
		CAS:       cas,
	}
	head := make([]byte, protocol.HeaderSize)
	h.Encode(head)
	for _, p := range [][]byte{head, extras, key, value} {
		if _, err := w.Write(p); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debugw("memtest: write failed", "error", err.Error())
			return
		}
	}
}
