// Package decodecache memoizes the expensive LZX/XEX2 decompression step
// behind a two-tier cache: a small in-memory TinyLFU front cache for the
// working set of a single run, and an optional on-disk pebble key-value
// store so repeated runs against the same package (re-running a recovery
// pass after tweaking overrides, for instance) skip decompression
// entirely.
package decodecache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

// key identifies one decompression result: the content hash of the
// compressed input, mixed with the window size and requested output
// length, since the same compressed bytes decode differently under a
// different window or truncation point.
type key uint64

func makeKey(compressed []byte, windowBits uint, outputSize int) key {
	var h xxhash.Digest
	h.Write(compressed)
	binary.Write(&h, binary.BigEndian, uint64(windowBits))
	binary.Write(&h, binary.BigEndian, uint64(outputSize))
	return key(h.Sum64())
}

func hashKey(k key) uint64 { return uint64(k) }

const (
	frontCacheEntries = 256
	frontCacheSamples = frontCacheEntries * 10
)

// Cache is a decompressed-image cache. The zero value is not usable; call
// New or Open.
type Cache struct {
	front *tinylfu.T[key, []byte]
	back  *pebble.DB // nil when running without an on-disk tier
}

// New returns a cache with only the in-memory front tier.
func New() *Cache {
	return &Cache{front: tinylfu.New[key, []byte](frontCacheEntries, frontCacheSamples, hashKey)}
}

// Open returns a cache backed by an on-disk pebble store rooted at dir,
// in addition to the in-memory front tier.
func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{
		front: tinylfu.New[key, []byte](frontCacheEntries, frontCacheSamples, hashKey),
		back:  db,
	}, nil
}

// Close releases the on-disk store, if any.
func (c *Cache) Close() error {
	if c.back == nil {
		return nil
	}
	return c.back.Close()
}

// Get returns a previously cached decompression result for the given
// compressed input, window size and output length, checking the front
// tier first and falling back to the on-disk store (promoting a hit back
// into the front tier) when present.
func (c *Cache) Get(compressed []byte, windowBits uint, outputSize int) ([]byte, bool) {
	k := makeKey(compressed, windowBits, outputSize)
	if v, ok := c.front.Get(k); ok {
		return v, true
	}
	if c.back == nil {
		return nil, false
	}

	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], uint64(k))
	v, closer, err := c.back.Get(kb[:])
	if err != nil {
		return nil, false
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	c.front.Add(k, out)
	return out, true
}

// Put stores a decompression result under the given compressed input,
// window size and output length, in both tiers.
func (c *Cache) Put(compressed []byte, windowBits uint, outputSize int, decoded []byte) error {
	k := makeKey(compressed, windowBits, outputSize)
	c.front.Add(k, decoded)

	if c.back == nil {
		return nil
	}
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], uint64(k))
	return c.back.Set(kb[:], decoded, pebble.Sync)
}
