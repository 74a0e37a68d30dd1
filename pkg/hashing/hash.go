package hashing

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hash32 computes a 32-bit hash of a key.
type Hash32 func(data []byte) uint32

// Hash64 computes a 64-bit hash of a key.
type Hash64 func(data []byte) uint64

// Murmur32 hashes data with Murmur3 (x86, 32-bit).
func Murmur32(data []byte) uint32 {
	return murmur3.Sum32(data)
}

// Murmur64 hashes data with Murmur3 (x64, first 64 bits of the 128-bit sum).
func Murmur64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// XXHash64 hashes data with XXH64.
func XXHash64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Hash64ByName resolves a configured hash name. Unknown names fall back to Murmur64.
func Hash64ByName(name string) Hash64 {
	switch name {
	case "xxhash":
		return XXHash64
	default:
		return Murmur64
	}
}
