package kvstore

import (
	"reflect"
	"testing"
)

func TestMemory_CommitAppliesOpsInOrder(t *testing.T) {
	m := NewMemory()
	b := NewBatch().
		SetString("server_name_0", "home").
		SetInt("server_port_0", 9091).
		Remove("server_name_0").
		SetString("server_name_0", "box")
	if err := m.Commit(b); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, ok, err := m.Get("server_name_0")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if v.Str != "box" {
		t.Errorf("server_name_0 = %q, want %q", v.Str, "box")
	}

	keys, _ := m.Keys()
	want := []string{"server_name_0", "server_port_0"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}
}

func TestMemory_ClearBatch(t *testing.T) {
	m := NewMemory()
	m.Set("a", String("1"))
	m.Set("b", String("2"))

	if err := m.Commit(NewBatch().Clear().SetBool("c", true)); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	keys, _ := m.Keys()
	if !reflect.DeepEqual(keys, []string{"c"}) {
		t.Errorf("Keys = %v, want [c]", keys)
	}
}

func TestMemory_ScanPrefix(t *testing.T) {
	m := NewMemory()
	m.Set("seedbox_xirvikdedi_server_0", String("a.xirvik.com"))
	m.Set("seedbox_xirviksemi_server_0", String("b.xirvik.com"))
	m.Set("server_address_0", String("192.168.1.2"))

	got, err := m.ScanPrefix("seedbox_")
	if err != nil {
		t.Fatalf("ScanPrefix: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ScanPrefix returned %d keys, want 2", len(got))
	}
}

func TestSnapshot_Coercion(t *testing.T) {
	s := Snapshot{
		"port_str":  String("8080"),
		"port_int":  Int(9091),
		"ssl_str":   String("true"),
		"ssl_bool":  Bool(true),
		"bad_int":   String("abc"),
		"flag_int":  Int(1),
		"plain_str": String("x"),
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int from string", s.Int("port_str", 0), int64(8080)},
		{"int native", s.Int("port_int", 0), int64(9091)},
		{"int missing", s.Int("missing", 7), int64(7)},
		{"int unparseable", s.Int("bad_int", 5), int64(5)},
		{"bool from string", s.Bool("ssl_str", false), true},
		{"bool native", s.Bool("ssl_bool", false), true},
		{"bool from int", s.Bool("flag_int", false), true},
		{"bool missing", s.Bool("missing", true), true},
		{"string from int", s.String("port_int", ""), "9091"},
		{"string missing", s.String("missing", "def"), "def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	values := []Value{String(""), String("a\tb"), Int(-3), Int(1 << 40), Bool(true), Bool(false)}
	for _, v := range values {
		got, err := Parse(v.Kind, v.Text())
		if err != nil {
			t.Fatalf("Parse(%v): %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("Parse(%v) = %v", v, got)
		}
	}

	if _, err := Parse(KindInt, "nope"); err == nil {
		t.Error("expected error for invalid int")
	}
	if _, err := Parse(KindBool, "maybe"); err == nil {
		t.Error("expected error for invalid bool")
	}
}
