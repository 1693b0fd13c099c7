package storage

import (
	"testing"

	"github.com/kalambet/seedlink/internal/kvstore"
)

func TestBoltRecords(t *testing.T) {
	s, err := OpenBolt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	testRecordStore(t, s)
}

func TestBoltRecords_PersistAcrossOpen(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenBolt(dir)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	if err := s1.Set("rssfeed_url_0", kvstore.String("https://example.com/rss")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := OpenBolt(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get("rssfeed_url_0")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if v.Str != "https://example.com/rss" {
		t.Errorf("value = %q", v.Str)
	}
}

func TestDecodeBoltValue_Rejects(t *testing.T) {
	if _, err := decodeBoltValue("k", nil); err == nil {
		t.Error("expected error for empty record")
	}
	if _, err := decodeBoltValue("k", append([]byte{byte(kvstore.KindInt)}, "x"...)); err == nil {
		t.Error("expected error for malformed int record")
	}
}
