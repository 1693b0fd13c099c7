package settings

import (
	"fmt"
	"time"

	"github.com/kalambet/seedlink/internal/kvstore"
)

const (
	keyEnableRSS          = "notifications_enablerss"
	keyCheckUpdates       = "system_checkupdates"
	keyLastCheckedUpdates = "system_lastcheckedupdates"
)

// System holds the process-wide preferences stored next to the records.
type System struct {
	RSSNotifications   bool      `json:"rss_notifications"`
	CheckUpdates       bool      `json:"check_updates"`
	LastCheckedUpdates time.Time `json:"last_checked_updates"`
}

func (r *Registry) System() (System, error) {
	snap := kvstore.Snapshot{}
	for _, k := range []string{keyEnableRSS, keyCheckUpdates, keyLastCheckedUpdates} {
		v, ok, err := r.store.Get(k)
		if err != nil {
			return System{}, fmt.Errorf("reading %s: %w", k, err)
		}
		if ok {
			snap[k] = v
		}
	}

	sys := System{
		RSSNotifications: snap.Bool(keyEnableRSS, true),
		CheckUpdates:     snap.Bool(keyCheckUpdates, true),
	}
	if ms := snap.Int(keyLastCheckedUpdates, 0); ms > 0 {
		sys.LastCheckedUpdates = time.UnixMilli(ms).UTC()
	}
	return sys, nil
}

func (r *Registry) SetRSSNotifications(enabled bool) error {
	return r.store.Set(keyEnableRSS, kvstore.Bool(enabled))
}

func (r *Registry) SetCheckUpdates(enabled bool) error {
	return r.store.Set(keyCheckUpdates, kvstore.Bool(enabled))
}

// TouchUpdateCheck records that an update check ran now.
func (r *Registry) TouchUpdateCheck() error {
	return r.store.Set(keyLastCheckedUpdates, kvstore.Int(r.clock.Now().UnixMilli()))
}
