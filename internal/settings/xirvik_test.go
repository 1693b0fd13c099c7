package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseXirvikCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		provider Provider
		wantErr  bool
	}{
		{"dedicated", "box1.xirvik.com\nP\ntok", XirvikDedi, false},
		{"semi", "box2.xirvik.com\r\nN\r\ntok", XirvikSemi, false},
		{"shared", "box3.xirvik.com\nRG\ntok\n", XirvikShared, false},
		{"too short", "box.xirvik.com\nP", "", true},
		{"unknown type", "box.xirvik.com\nQ\ntok", "", true},
		{"empty host", "\nP\ntok", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ParseXirvikCode(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidXirvikCode) {
					t.Errorf("err = %v, want ErrInvalidXirvikCode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseXirvikCode: %v", err)
			}
			if code.Provider != tt.provider || code.Token != "tok" {
				t.Errorf("code = %+v", code)
			}
		})
	}

	code, _ := ParseXirvikCode("box1.xirvik.com\nP\ntok")
	if code.Name() != "box1" {
		t.Errorf("Name = %q, want box1", code.Name())
	}
}

type stubMounts struct {
	mount string
	err   error
	calls int
}

func (s *stubMounts) ResolveMount(context.Context, string, string, string) (string, error) {
	s.calls++
	return s.mount, s.err
}

func TestProvisionXirvik_Dedicated(t *testing.T) {
	r := newTestRegistry(t)
	mounts := &stubMounts{mount: "/RPC5"}

	rec, err := r.ProvisionXirvik(context.Background(), "box1.xirvik.com\nP\ntoken-1", mounts)
	if err != nil {
		t.Fatalf("ProvisionXirvik: %v", err)
	}
	if rec.Provider != XirvikDedi || rec.Name != "box1" || rec.AuthToken != "token-1" || rec.Daemon != RTorrent {
		t.Errorf("record = %+v", rec)
	}
	if mounts.calls != 0 {
		t.Error("dedicated boxes should not resolve a mount")
	}

	// Scanning the same box again replaces the token instead of adding a record.
	if _, err := r.ProvisionXirvik(context.Background(), "box1.xirvik.com\nP\ntoken-2", mounts); err != nil {
		t.Fatalf("second ProvisionXirvik: %v", err)
	}
	boxes, _ := r.Seedboxes(XirvikDedi)
	if len(boxes) != 1 || boxes[0].AuthToken != "token-2" {
		t.Errorf("Seedboxes = %+v", boxes)
	}
}

func TestProvisionXirvik_KeepsAlarmPreferences(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	rec, err := r.ProvisionXirvik(ctx, "box1.xirvik.com\nP\ntoken-1", nil)
	if err != nil {
		t.Fatalf("ProvisionXirvik: %v", err)
	}
	rec.AlarmOnFinished = false
	rec.AlarmOnNew = true
	rec.AlarmExcludeFilter = "sample"
	rec.AlarmIncludeFilter = "1080p"
	if ok, err := r.UpdateSeedbox(XirvikDedi, rec.ProviderOffset, rec); err != nil || !ok {
		t.Fatalf("UpdateSeedbox = %v, %v", ok, err)
	}

	again, err := r.ProvisionXirvik(ctx, "box1.xirvik.com\nP\ntoken-2", nil)
	if err != nil {
		t.Fatalf("second ProvisionXirvik: %v", err)
	}
	if again.AuthToken != "token-2" {
		t.Errorf("token = %q, want token-2", again.AuthToken)
	}
	if again.AlarmOnFinished || !again.AlarmOnNew || again.AlarmExcludeFilter != "sample" || again.AlarmIncludeFilter != "1080p" {
		t.Errorf("alarm preferences lost: %+v", again)
	}

	// A plain AddSeedbox still replaces the whole slot.
	if _, _, err := r.AddSeedbox(XirvikDedi, ServerRecord{Host: "box1.xirvik.com"}); err != nil {
		t.Fatalf("AddSeedbox: %v", err)
	}
	boxes, _ := r.Seedboxes(XirvikDedi)
	if len(boxes) != 1 || boxes[0].AlarmExcludeFilter != "" {
		t.Errorf("Seedboxes = %+v", boxes)
	}
}

func TestProvisionXirvik_SharedMount(t *testing.T) {
	tests := []struct {
		name   string
		mounts *stubMounts
		want   string
	}{
		{"resolved", &stubMounts{mount: "/RPC3"}, "/RPC3"},
		{"fallback", &stubMounts{err: errors.New("unreachable")}, DefaultXirvikMount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			rec, err := r.ProvisionXirvik(context.Background(), "s.xirvik.com\nRG\nt", tt.mounts)
			if err != nil {
				t.Fatalf("ProvisionXirvik: %v", err)
			}
			if rec.FolderPath != tt.want {
				t.Errorf("folder = %q, want %q", rec.FolderPath, tt.want)
			}
		})
	}
}

func TestProvisionXirvik_Invalid(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.ProvisionXirvik(context.Background(), "garbage", nil); !errors.Is(err, ErrInvalidXirvikCode) {
		t.Errorf("err = %v, want ErrInvalidXirvikCode", err)
	}
}

func TestXirvikAutoconf_ResolveMount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browsers_addons/transdroid_autoconf.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("# autoconf\n/RPC4\n"))
	}))
	defer srv.Close()

	x := NewXirvikAutoconf(0)
	x.endpoint = func(string) string { return srv.URL + "/browsers_addons/transdroid_autoconf.txt" }

	mount, err := x.ResolveMount(context.Background(), "s.xirvik.com", "", "")
	if err != nil {
		t.Fatalf("ResolveMount: %v", err)
	}
	if mount != "/RPC4" {
		t.Errorf("mount = %q, want /RPC4", mount)
	}

	x.endpoint = func(string) string { return srv.URL + "/missing" }
	if _, err := x.ResolveMount(context.Background(), "s.xirvik.com", "", ""); err == nil {
		t.Error("expected error for 404")
	}
}
