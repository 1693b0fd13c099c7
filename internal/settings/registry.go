// Package settings keeps server, seedbox and feed records in a flat
// kvstore.Store and gives every server record an order that is unique across
// the manual namespace and all seedbox providers.
package settings

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/seedlink/internal/kvstore"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Registry is the read/write entry point for every stored record.
type Registry struct {
	store  kvstore.Store
	clock  Clock
	logger *slog.Logger

	// mu serializes read-modify-write sequences so offsets computed from a
	// snapshot are still free when the batch commits.
	mu sync.Mutex
}

func NewRegistry(store kvstore.Store) *Registry {
	return &Registry{
		store:  store,
		clock:  realClock{},
		logger: slog.Default(),
	}
}

// NewRegistryWithClock creates a Registry with a custom clock (for testing).
func NewRegistryWithClock(store kvstore.Store, clock Clock) *Registry {
	r := NewRegistry(store)
	r.clock = clock
	return r
}

// Store exposes the underlying record store.
func (r *Registry) Store() kvstore.Store {
	return r.store
}

// Exclusive runs fn while no registry mutation can interleave. Bulk writers
// that go straight to the store, like settings import, use it.
func (r *Registry) Exclusive(fn func(kvstore.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.store)
}

// slot locates one live server record.
type slot struct {
	desc   Descriptor
	offset int
	record ServerRecord
}

func (r *Registry) serverSnapshot() (kvstore.Snapshot, error) {
	snap, err := kvstore.Load(r.store, Manual().Prefix())
	if err != nil {
		return nil, fmt.Errorf("loading manual servers: %w", err)
	}
	seedboxes, err := r.store.ScanPrefix("seedbox_")
	if err != nil {
		return nil, fmt.Errorf("loading seedboxes: %w", err)
	}
	for k, v := range seedboxes {
		snap[k] = v
	}
	return snap, nil
}

// layout walks the manual namespace and then every provider in catalog
// order. Each namespace reserves maxOffset+1 orders, so a hole in an earlier
// namespace never lets two records share an order.
func layout(snap kvstore.Snapshot) []slot {
	var slots []slot

	manual := Manual()
	base := 0
	descs := append([]Descriptor{manual}, catalog...)
	for _, d := range descs {
		top := d.MaxOffset(snap)
		for off := 0; off <= top; off++ {
			rec, ok := d.Decode(snap, off)
			if !ok {
				continue
			}
			rec.Order = base + off
			slots = append(slots, slot{desc: d, offset: off, record: rec})
		}
		base += top + 1
	}
	return slots
}

func find(slots []slot, order int) (slot, bool) {
	for _, s := range slots {
		if s.record.Order == order {
			return s, true
		}
	}
	return slot{}, false
}

// ListAll returns every live server record in order.
func (r *Registry) ListAll() ([]ServerRecord, error) {
	snap, err := r.serverSnapshot()
	if err != nil {
		return nil, err
	}
	slots := layout(snap)
	out := make([]ServerRecord, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.record)
	}
	return out, nil
}

// Get resolves an order from the current snapshot.
func (r *Registry) Get(order int) (ServerRecord, bool, error) {
	snap, err := r.serverSnapshot()
	if err != nil {
		return ServerRecord{}, false, err
	}
	s, ok := find(layout(snap), order)
	return s.record, ok, nil
}

// AddManual appends a manual server after the highest occupied offset.
func (r *Registry) AddManual(rec ServerRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.serverSnapshot()
	if err != nil {
		return 0, err
	}
	d := Manual()
	offset := d.MaxOffset(snap) + 1

	b := kvstore.NewBatch()
	d.Encode(b, rec, offset)
	if err := r.store.Commit(b); err != nil {
		return 0, fmt.Errorf("saving server: %w", err)
	}
	r.logger.Debug("server added", "order", offset, "host", rec.Host)
	return offset, nil
}

// AddSeedbox stores a provider record. A record with the same host at that
// provider is overwritten in place instead of appended.
func (r *Registry) AddSeedbox(p Provider, rec ServerRecord) (order, offset int, err error) {
	return r.saveSeedbox(p, rec, nil)
}

// keepAlarms carries the user's alarm preferences over from the record a
// re-provisioned seedbox replaces.
func keepAlarms(existing, rec ServerRecord) ServerRecord {
	rec.AlarmOnFinished = existing.AlarmOnFinished
	rec.AlarmOnNew = existing.AlarmOnNew
	rec.AlarmExcludeFilter = existing.AlarmExcludeFilter
	rec.AlarmIncludeFilter = existing.AlarmIncludeFilter
	return rec
}

// saveSeedbox appends rec or overwrites the same-host slot. merge, when set,
// combines the replaced record with rec before writing.
func (r *Registry) saveSeedbox(p Provider, rec ServerRecord, merge func(existing, rec ServerRecord) ServerRecord) (order, offset int, err error) {
	d, err := Lookup(p)
	if err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.serverSnapshot()
	if err != nil {
		return 0, 0, err
	}

	top := d.MaxOffset(snap)
	offset = top + 1
	var existing ServerRecord
	for off := 0; off <= top; off++ {
		if cur, ok := d.Decode(snap, off); ok && cur.Host == rec.Host {
			offset, existing = off, cur
		}
	}
	if offset <= top && merge != nil {
		rec = merge(existing, rec)
	}

	b := kvstore.NewBatch()
	if offset <= top {
		// Drop fields the new record no longer carries.
		d.RemoveAt(b, offset)
	}
	d.Encode(b, rec, offset)
	if err := r.store.Commit(b); err != nil {
		return 0, 0, fmt.Errorf("saving %s seedbox: %w", p, err)
	}

	snap.Apply(b)
	for _, s := range layout(snap) {
		if s.desc.Provider() == p && s.offset == offset {
			order = s.record.Order
			break
		}
	}
	r.logger.Debug("seedbox saved", "provider", p, "offset", offset, "order", order, "replaced", offset <= top)
	return order, offset, nil
}

// Update replaces the record at order in place. It reports false when the
// order does not resolve in the current snapshot.
func (r *Registry) Update(order int, rec ServerRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.serverSnapshot()
	if err != nil {
		return false, err
	}
	s, ok := find(layout(snap), order)
	if !ok {
		return false, nil
	}

	b := kvstore.NewBatch()
	s.desc.RemoveAt(b, s.offset)
	s.desc.Encode(b, rec, s.offset)
	if err := r.store.Commit(b); err != nil {
		return false, fmt.Errorf("updating server %d: %w", order, err)
	}
	return true, nil
}

// UpdateSeedbox rewrites the provider slot at offset. It reports false for
// an empty slot.
func (r *Registry) UpdateSeedbox(p Provider, offset int, rec ServerRecord) (bool, error) {
	d, err := Lookup(p)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := kvstore.Load(r.store, d.Prefix())
	if err != nil {
		return false, fmt.Errorf("loading %s seedboxes: %w", p, err)
	}
	if _, ok := d.Decode(snap, offset); !ok {
		return false, nil
	}

	b := kvstore.NewBatch()
	d.RemoveAt(b, offset)
	d.Encode(b, rec, offset)
	if err := r.store.Commit(b); err != nil {
		return false, fmt.Errorf("updating %s seedbox %d: %w", p, offset, err)
	}
	return true, nil
}

// Seedboxes lists the live records of one provider.
func (r *Registry) Seedboxes(p Provider) ([]ServerRecord, error) {
	if _, err := Lookup(p); err != nil {
		return nil, err
	}
	all, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	var out []ServerRecord
	for _, rec := range all {
		if rec.Provider == p {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Remove clears the slot behind order. Other records keep their offsets.
// It reports false when the order does not resolve.
func (r *Registry) Remove(order int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.serverSnapshot()
	if err != nil {
		return false, err
	}
	s, ok := find(layout(snap), order)
	if !ok {
		return false, nil
	}

	b := kvstore.NewBatch()
	s.desc.RemoveAt(b, s.offset)
	if err := r.store.Commit(b); err != nil {
		return false, fmt.Errorf("removing server %d: %w", order, err)
	}
	r.logger.Debug("server removed", "order", order, "provider", s.desc.Provider(), "offset", s.offset)
	return true, nil
}
