package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache deduplicates compiled schema trees across wavelengths and across
// spectrum reloads (uv apply re-registering the same manifest). Two schema
// documents whose raw bytes are identical share one
// compiled *Schema instead of each wavelength walking its own copy.
type Cache struct {
	lru *lru.Cache[string, *Schema]
}

// NewCache creates a bounded schema cache. size <= 0 falls back to a
// reasonable default rather than disabling caching outright, since a spec
// with many wavelengths sharing fragments is the common case this exists
// for.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, *Schema](size)
	return &Cache{lru: c}
}

// CompileCached compiles raw, reusing a previously compiled Schema when an
// identical document was already seen.
func (c *Cache) CompileCached(raw json.RawMessage) (*Schema, error) {
	if c == nil || len(raw) == 0 {
		return Compile(raw)
	}
	key := hashOf(raw)
	if s, ok := c.lru.Get(key); ok {
		return s, nil
	}
	s, err := Compile(raw)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, s)
	return s, nil
}

func hashOf(raw json.RawMessage) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
