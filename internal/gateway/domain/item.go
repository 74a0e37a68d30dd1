package domain

// Item is a cached value as returned to gateway clients.
type Item struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
	Flags uint32 `json:"flags"`
	CAS   uint64 `json:"cas"`
}

// StoreRequest describes a write.
type StoreRequest struct {
	Key   string
	Value []byte
	Flags uint32
	// TTL is the expiration in seconds; zero never expires.
	TTL  uint32
	Mode string // "set", "add", "replace"
	CAS  uint64
}

// CounterRequest describes an increment or decrement.
type CounterRequest struct {
	Key     string
	Delta   uint64
	Initial uint64
	TTL     uint32
	// NoCreate fails on a missing counter instead of creating it.
	NoCreate  bool
	Decrement bool
}

// ClusterHealth summarizes one cluster.
type ClusterHealth struct {
	Name  string `json:"name"`
	Nodes int    `json:"nodes"`
	Alive int    `json:"alive"`
}
