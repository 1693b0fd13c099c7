package kvstore

import (
	"strconv"
	"strings"
)

// Snapshot is a read-only copy of a slice of the store. Typed getters fall
// back to the given default when a key is absent or cannot be coerced, so
// fields added later decode safely from older data.
type Snapshot map[string]Value

func (s Snapshot) String(key, def string) string {
	v, ok := s[key]
	if !ok {
		return def
	}
	return v.Text()
}

func (s Snapshot) Int(key string, def int64) int64 {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindString:
		if i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func (s Snapshot) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindString:
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Str)); err == nil {
			return b
		}
	case KindInt:
		return v.Int != 0
	}
	return def
}

// Apply mirrors a batch onto the snapshot so callers can keep reading a
// consistent view after queueing writes.
func (s Snapshot) Apply(b *Batch) {
	if b.Clears() {
		for k := range s {
			delete(s, k)
		}
	}
	for _, op := range b.Ops() {
		if op.Delete {
			delete(s, op.Key)
			continue
		}
		s[op.Key] = op.Value
	}
}
