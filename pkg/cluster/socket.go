package cluster

import (
	"context"
	"net"
	"sync"
	"time"
)

// SocketConfig tunes connection setup and I/O deadlines.
type SocketConfig struct {
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	ReceiveTimeout time.Duration
	KeepAlive      time.Duration
	BufferSize     int
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 2 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 5 * time.Second
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// socket is a TCP connection with one pooled send buffer and one pooled
// receive buffer. Sends and receives run on their own goroutine and report
// through a callback; the caller must not touch the matching buffer until
// the callback has run.
type socket struct {
	addr string
	conn net.Conn
	cfg  SocketConfig

	sendHandle *BufferHandle
	recvHandle *BufferHandle
	send       *WriteBuffer
	recv       *ReadBuffer

	inflight  sync.WaitGroup
	closeOnce sync.Once
}

func dialSocket(ctx context.Context, addr string, cfg SocketConfig, pool *BufferPool) (*socket, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, newIOError(addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	s := &socket{
		addr:       addr,
		conn:       conn,
		cfg:        cfg,
		sendHandle: pool.Get(cfg.BufferSize),
		recvHandle: pool.Get(cfg.BufferSize),
	}
	s.send = NewWriteBuffer(s.sendHandle.Bytes())
	s.recv = NewReadBuffer(s.recvHandle.Bytes())
	return s, nil
}

// ScheduleSend writes the send buffer to the connection and calls done with
// the outcome. The buffer is reset before done runs.
func (s *socket) ScheduleSend(done func(error)) {
	data := s.send.Bytes()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout))
		if err == nil {
			_, err = s.conn.Write(data)
		}
		s.send.Reset()
		if err != nil {
			err = newIOError(s.addr, err)
		}
		done(err)
	}()
}

// ScheduleReceive performs one read into the receive buffer and calls done
// with the outcome.
func (s *socket) ScheduleReceive(done func(error)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout))
		n := 0
		if err == nil {
			n, err = s.recv.Fill(s.conn)
		} else {
			s.recv.Reset()
		}
		if n > 0 {
			// Deliver what arrived; a pending error resurfaces on the next read.
			err = nil
		}
		if err != nil {
			err = newIOError(s.addr, err)
		}
		done(err)
	}()
}

// Close shuts the connection, waits for in-flight I/O to return and gives
// the buffers back to the pool.
func (s *socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		s.inflight.Wait()
		s.sendHandle.Release()
		s.recvHandle.Release()
	})
	return err
}
