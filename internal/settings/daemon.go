package settings

import "strings"

// Daemon identifies the torrent client a server record connects to.
type Daemon string

const (
	Transmission Daemon = "transmission"
	QBittorrent  Daemon = "qbittorrent"
	Deluge       Daemon = "deluge"
	RTorrent     Daemon = "rtorrent"
	UTorrent     Daemon = "utorrent"
	Aria2        Daemon = "aria2"
	Vuze         Daemon = "vuze"
	KTorrent     Daemon = "ktorrent"
	Synology     Daemon = "synology"
	Bitflu       Daemon = "bitflu"
)

const daemonCodePrefix = "daemon_"

var daemons = []Daemon{Transmission, QBittorrent, Deluge, RTorrent, UTorrent, Aria2, Vuze, KTorrent, Synology, Bitflu}

// Daemons lists every known daemon kind.
func Daemons() []Daemon {
	out := make([]Daemon, len(daemons))
	copy(out, daemons)
	return out
}

// Code is the stable string persisted in the store.
func (d Daemon) Code() string {
	return daemonCodePrefix + string(d)
}

// DaemonFromCode accepts both the persisted code ("daemon_deluge") and the bare name.
func DaemonFromCode(code string) (Daemon, bool) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(code)), daemonCodePrefix)
	for _, d := range daemons {
		if string(d) == name {
			return d, true
		}
	}
	return "", false
}

// DefaultPort returns the port a daemon listens on out of the box.
func (d Daemon) DefaultPort(ssl bool) int {
	if ssl {
		if d == Synology {
			return 5001
		}
		return 443
	}
	switch d {
	case Transmission:
		return 9091
	case QBittorrent, UTorrent, KTorrent:
		return 8080
	case Deluge:
		return 8112
	case Aria2:
		return 6800
	case Vuze:
		return 6884
	case Synology:
		return 5000
	case Bitflu:
		return 4081
	default:
		return 80
	}
}
