package settings

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kalambet/seedlink/internal/kvstore"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(kvstore.NewMemory())
}

func mustAddManual(t *testing.T, r *Registry, host string) int {
	t.Helper()
	order, err := r.AddManual(ServerRecord{Name: host, Daemon: Transmission, Host: host})
	if err != nil {
		t.Fatalf("AddManual(%s): %v", host, err)
	}
	return order
}

func mustAddSeedbox(t *testing.T, r *Registry, p Provider, host string) (int, int) {
	t.Helper()
	order, offset, err := r.AddSeedbox(p, ServerRecord{Name: host, Host: host, Username: "u"})
	if err != nil {
		t.Fatalf("AddSeedbox(%s, %s): %v", p, host, err)
	}
	return order, offset
}

func assertUniqueOrders(t *testing.T, recs []ServerRecord) {
	t.Helper()
	seen := make(map[int]string)
	for _, rec := range recs {
		if prev, dup := seen[rec.Order]; dup {
			t.Fatalf("order %d shared by %s and %s", rec.Order, prev, rec.Host)
		}
		seen[rec.Order] = rec.Host
	}
}

func TestListAll_Empty(t *testing.T) {
	r := newTestRegistry(t)

	recs, err := r.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("ListAll returned %d records, want 0", len(recs))
	}
}

func TestListAll_OrdersAcrossNamespaces(t *testing.T) {
	r := newTestRegistry(t)

	mustAddManual(t, r, "home.lan")
	mustAddManual(t, r, "nas.lan")
	mustAddSeedbox(t, r, XirvikDedi, "a.xirvik.com")
	mustAddSeedbox(t, r, XirvikShared, "b.xirvik.com")
	mustAddSeedbox(t, r, Seedstuff, "c.seedstuff.ca")

	recs, err := r.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}

	want := []struct {
		host     string
		order    int
		provider Provider
	}{
		{"home.lan", 0, ""},
		{"nas.lan", 1, ""},
		{"a.xirvik.com", 2, XirvikDedi},
		{"b.xirvik.com", 3, XirvikShared},
		{"c.seedstuff.ca", 4, Seedstuff},
	}
	if len(recs) != len(want) {
		t.Fatalf("ListAll returned %d records, want %d", len(recs), len(want))
	}
	for i, w := range want {
		if recs[i].Host != w.host || recs[i].Order != w.order || recs[i].Provider != w.provider {
			t.Errorf("record %d = {%s %d %q}, want {%s %d %q}",
				i, recs[i].Host, recs[i].Order, recs[i].Provider, w.host, w.order, w.provider)
		}
	}
}

func TestAddManual_ReturnsOrder(t *testing.T) {
	r := newTestRegistry(t)

	if got := mustAddManual(t, r, "a"); got != 0 {
		t.Errorf("first order = %d, want 0", got)
	}
	if got := mustAddManual(t, r, "b"); got != 1 {
		t.Errorf("second order = %d, want 1", got)
	}
}

func TestAddSeedbox_UnknownProvider(t *testing.T) {
	r := newTestRegistry(t)

	if _, _, err := r.AddSeedbox("nope", ServerRecord{Host: "x"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAddSeedbox_SameHostOverwrites(t *testing.T) {
	r := newTestRegistry(t)
	d, _ := Lookup(XirvikDedi)

	mustAddSeedbox(t, r, XirvikDedi, "a.xirvik.com")
	_, firstOffset := mustAddSeedbox(t, r, XirvikDedi, "b.xirvik.com")

	snap, _ := kvstore.Load(r.Store(), d.Prefix())
	before := d.MaxOffset(snap)

	order, offset, err := r.AddSeedbox(XirvikDedi, ServerRecord{Name: "b", Host: "b.xirvik.com", AuthToken: "new-token"})
	if err != nil {
		t.Fatalf("AddSeedbox: %v", err)
	}
	if offset != firstOffset {
		t.Errorf("offset = %d, want existing slot %d", offset, firstOffset)
	}

	snap, _ = kvstore.Load(r.Store(), d.Prefix())
	if after := d.MaxOffset(snap); after != before {
		t.Errorf("MaxOffset changed from %d to %d", before, after)
	}

	got, ok, err := r.Get(order)
	if err != nil || !ok {
		t.Fatalf("Get(%d): ok=%v err=%v", order, ok, err)
	}
	if got.AuthToken != "new-token" {
		t.Errorf("token = %q, want %q", got.AuthToken, "new-token")
	}
}

func TestRemove_LeavesHole(t *testing.T) {
	r := newTestRegistry(t)

	mustAddManual(t, r, "a")
	removed := mustAddManual(t, r, "b")
	mustAddManual(t, r, "c")
	seedOrder, _ := mustAddSeedbox(t, r, XirvikSemi, "s.xirvik.com")

	ok, err := r.Remove(removed)
	if err != nil || !ok {
		t.Fatalf("Remove(%d): ok=%v err=%v", removed, ok, err)
	}

	recs, err := r.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListAll returned %d records, want 3", len(recs))
	}
	for _, rec := range recs {
		if rec.Order == removed {
			t.Errorf("order %d still resolves to %s", removed, rec.Host)
		}
	}
	if recs[1].Host != "c" || recs[1].Order != 2 {
		t.Errorf("c moved to order %d", recs[1].Order)
	}
	if recs[2].Order != seedOrder {
		t.Errorf("seedbox order changed from %d to %d", seedOrder, recs[2].Order)
	}

	// The hole is not reused: the next add goes after the highest offset.
	if got := mustAddManual(t, r, "d"); got != 3 {
		t.Errorf("new manual order = %d, want 3", got)
	}
}

func TestRemove_UnknownOrderIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	mustAddManual(t, r, "a")

	ok, err := r.Remove(42)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok {
		t.Error("Remove(42) reported success")
	}
	recs, _ := r.ListAll()
	if len(recs) != 1 {
		t.Errorf("ListAll returned %d records, want 1", len(recs))
	}
}

func TestRemove_ClearsAllFields(t *testing.T) {
	r := newTestRegistry(t)
	order, _ := mustAddSeedbox(t, r, XirvikShared, "x.xirvik.com")
	if _, err := r.Update(order, ServerRecord{Host: "x.xirvik.com", FolderPath: "/RPC9", AuthToken: "t"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := r.Remove(order); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	keys, _ := r.Store().Keys()
	if len(keys) != 0 {
		t.Errorf("keys left after remove: %v", keys)
	}
}

func TestUpdate_InPlace(t *testing.T) {
	r := newTestRegistry(t)
	mustAddManual(t, r, "a")
	order := mustAddManual(t, r, "b")

	ok, err := r.Update(order, ServerRecord{Name: "renamed", Daemon: Deluge, Host: "b2", Port: 8112})
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	got, ok, _ := r.Get(order)
	if !ok {
		t.Fatal("record vanished after update")
	}
	if got.Name != "renamed" || got.Host != "b2" || got.Daemon != Deluge {
		t.Errorf("updated record = %+v", got)
	}

	ok, err = r.Update(99, ServerRecord{Host: "x"})
	if err != nil || ok {
		t.Errorf("Update(99) = %v, %v; want false, nil", ok, err)
	}
}

func TestUpdateSeedbox(t *testing.T) {
	r := newTestRegistry(t)
	_, offset := mustAddSeedbox(t, r, Seedstuff, "s1")

	ok, err := r.UpdateSeedbox(Seedstuff, offset, ServerRecord{Host: "s1", Username: "bob", Name: "mine"})
	if err != nil || !ok {
		t.Fatalf("UpdateSeedbox = %v, %v", ok, err)
	}
	boxes, err := r.Seedboxes(Seedstuff)
	if err != nil {
		t.Fatalf("Seedboxes: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Username != "bob" || boxes[0].FolderPath != "/bob/utorrent" {
		t.Errorf("Seedboxes = %+v", boxes)
	}
	if _, err := r.Seedboxes("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestUpdateSeedbox_EmptySlot(t *testing.T) {
	r := newTestRegistry(t)
	mustAddSeedbox(t, r, Seedstuff, "s1")

	ok, err := r.UpdateSeedbox(Seedstuff, 5, ServerRecord{Host: "ghost"})
	if err != nil || ok {
		t.Fatalf("UpdateSeedbox(5) = %v, %v; want false, nil", ok, err)
	}
	boxes, _ := r.Seedboxes(Seedstuff)
	if len(boxes) != 1 || boxes[0].Host != "s1" {
		t.Errorf("empty-slot update wrote a record: %+v", boxes)
	}
	if _, err := r.UpdateSeedbox("nope", 0, ServerRecord{Host: "x"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOrdersUniqueUnderRandomMutations(t *testing.T) {
	r := newTestRegistry(t)
	rng := rand.New(rand.NewSource(7))
	providers := []Provider{"", XirvikDedi, XirvikSemi, XirvikShared, Seedstuff}

	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0, 1:
			p := providers[rng.Intn(len(providers))]
			host := "h" + string(rune('a'+rng.Intn(12)))
			if p == "" {
				mustAddManual(t, r, host)
			} else {
				mustAddSeedbox(t, r, p, host)
			}
		case 2:
			recs, err := r.ListAll()
			if err != nil {
				t.Fatalf("ListAll: %v", err)
			}
			if len(recs) == 0 {
				continue
			}
			if _, err := r.Remove(recs[rng.Intn(len(recs))].Order); err != nil {
				t.Fatalf("Remove: %v", err)
			}
		}

		recs, err := r.ListAll()
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		assertUniqueOrders(t, recs)
	}
}

func TestSystemDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistryWithClock(kvstore.NewMemory(), fixedClock{now})

	sys, err := r.System()
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if !sys.RSSNotifications || !sys.CheckUpdates || !sys.LastCheckedUpdates.IsZero() {
		t.Errorf("defaults = %+v", sys)
	}

	if err := r.SetRSSNotifications(false); err != nil {
		t.Fatalf("SetRSSNotifications: %v", err)
	}
	if err := r.TouchUpdateCheck(); err != nil {
		t.Fatalf("TouchUpdateCheck: %v", err)
	}
	sys, _ = r.System()
	if sys.RSSNotifications {
		t.Error("RSS notifications still enabled")
	}
	if !sys.LastCheckedUpdates.Equal(now) {
		t.Errorf("LastCheckedUpdates = %v, want %v", sys.LastCheckedUpdates, now)
	}
}
