package cluster

import (
	"errors"
	"fmt"
)

var (
	ErrNotAlive      = errors.New("node is not alive")
	ErrNoAliveNodes  = errors.New("no alive nodes in cluster")
	ErrClusterClosed = errors.New("cluster is closed")
	ErrIO            = errors.New("node i/o failure")
	ErrProtocol      = errors.New("protocol violation")
)

// IOError reports a connection or transfer failure on a node.
type IOError struct {
	Addr string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v on %s", ErrIO, e.Addr)
	}
	return fmt.Sprintf("%v on %s: %v", ErrIO, e.Addr, e.Err)
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(addr string, err error) error {
	var ioErr *IOError
	if errors.As(err, &ioErr) && ioErr.Addr == addr {
		return err
	}
	return &IOError{Addr: addr, Err: err}
}
