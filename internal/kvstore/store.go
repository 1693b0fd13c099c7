// Package kvstore defines the flat key/value record store every setting is
// persisted through, together with write batches and read snapshots.
//
// Keys follow the convention <prefix><field>_<offset>, one scalar per key.
// A Batch groups writes so they are applied atomically by Commit.
package kvstore

// Store is a flat mapping from string key to scalar value.
type Store interface {
	Get(key string) (Value, bool, error)
	Set(key string, v Value) error
	Remove(key string) error
	// Keys returns every key in ascending order.
	Keys() ([]string, error)
	ScanPrefix(prefix string) (map[string]Value, error)
	// Commit applies the whole batch or nothing.
	Commit(b *Batch) error
}

// Op is one write inside a Batch.
type Op struct {
	Key    string
	Value  Value
	Delete bool
}

// Batch collects writes to be committed together.
type Batch struct {
	clear bool
	ops   []Op
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Set(key string, v Value) *Batch {
	b.ops = append(b.ops, Op{Key: key, Value: v})
	return b
}

func (b *Batch) SetString(key, s string) *Batch { return b.Set(key, String(s)) }
func (b *Batch) SetInt(key string, i int64) *Batch { return b.Set(key, Int(i)) }
func (b *Batch) SetBool(key string, v bool) *Batch { return b.Set(key, Bool(v)) }

func (b *Batch) Remove(key string) *Batch {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
	return b
}

// Clear marks the batch to drop every existing key before its ops run.
func (b *Batch) Clear() *Batch {
	b.clear = true
	return b
}

func (b *Batch) Clears() bool { return b.clear }

// Ops returns the writes in submission order. Later ops on the same key win.
func (b *Batch) Ops() []Op { return b.ops }

func (b *Batch) Len() int { return len(b.ops) }

// Empty reports whether committing the batch would change nothing.
func (b *Batch) Empty() bool { return !b.clear && len(b.ops) == 0 }

// Load reads every key under prefix into a Snapshot.
func Load(s Store, prefix string) (Snapshot, error) {
	m, err := s.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	return Snapshot(m), nil
}
