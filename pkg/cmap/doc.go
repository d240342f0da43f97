// Package cmap provides a sharded concurrent map keyed by strings.
//
// Each shard has its own RWMutex; a murmur3 hash of the key picks the shard.
// The file server keeps its table of live connections here.
//
// Usage:
//
//	m := cmap.New[*Conn]()
//	m.Set(id, conn)
//	c, ok := m.Get(id)
package cmap
