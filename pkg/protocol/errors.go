package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound      = errors.New("memcached: key not found")
	ErrKeyExists        = errors.New("memcached: key exists")
	ErrValueTooLarge    = errors.New("memcached: value too large")
	ErrInvalidArguments = errors.New("memcached: invalid arguments")
	ErrNotStored        = errors.New("memcached: item not stored")
	ErrNonNumeric       = errors.New("memcached: incr/decr on non-numeric value")
	ErrUnknownCommand   = errors.New("memcached: unknown command")
	ErrOutOfMemory      = errors.New("memcached: out of memory")
	ErrKeyTooLong       = errors.New("memcached: key too long")
)

// StatusError carries a status code without a dedicated sentinel.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memcached: status 0x%04x", uint16(e.Status))
}

// StatusErr maps a response status to an error, nil on success.
func StatusErr(s Status) error {
	switch s {
	case StatusNoError:
		return nil
	case StatusKeyNotFound:
		return ErrKeyNotFound
	case StatusKeyExists:
		return ErrKeyExists
	case StatusValueTooLarge:
		return ErrValueTooLarge
	case StatusInvalidArguments:
		return ErrInvalidArguments
	case StatusItemNotStored:
		return ErrNotStored
	case StatusNonNumeric:
		return ErrNonNumeric
	case StatusUnknownCommand:
		return ErrUnknownCommand
	case StatusOutOfMemory:
		return ErrOutOfMemory
	default:
		return &StatusError{Status: s}
	}
}

// ValidateKey checks the length limits the server enforces.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidArguments)
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
