package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/seedlink/internal/kvstore"
)

// Provider identifies a seedbox provider. The zero value stands for
// manually configured servers.
type Provider string

const (
	XirvikDedi   Provider = "xirvikdedi"
	XirvikSemi   Provider = "xirviksemi"
	XirvikShared Provider = "xirvikshared"
	Seedstuff    Provider = "seedstuff"
)

var ErrUnknownProvider = errors.New("unknown seedbox provider")

// Descriptor owns one key namespace in the store and translates between its
// keys and ServerRecord. Offsets are private to the namespace.
type Descriptor interface {
	Provider() Provider
	Name() string
	Prefix() string
	// Decode reports false when the slot has no host, i.e. it is empty or removed.
	Decode(s kvstore.Snapshot, offset int) (ServerRecord, bool)
	Encode(b *kvstore.Batch, r ServerRecord, offset int)
	// MaxOffset returns the highest occupied offset, or -1 when none is.
	MaxOffset(s kvstore.Snapshot) int
	RemoveAt(b *kvstore.Batch, offset int)
}

var catalog = []Descriptor{
	&seedbox{
		id:      XirvikDedi,
		name:    "Xirvik dedicated",
		daemon:  RTorrent,
		connect: xirvikDirect,
	},
	&seedbox{
		id:      XirvikSemi,
		name:    "Xirvik semi-dedicated",
		daemon:  RTorrent,
		connect: xirvikDirect,
	},
	&seedbox{
		id:      XirvikShared,
		name:    "Xirvik shared",
		daemon:  RTorrent,
		extra:   []string{"folder"},
		connect: xirvikShared,
	},
	&seedbox{
		id:      Seedstuff,
		name:    "Seedstuff",
		daemon:  UTorrent,
		connect: seedstuff,
	},
}

// Catalog returns the seedbox descriptors in their fixed iteration order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Manual returns the descriptor for hand-configured servers.
func Manual() Descriptor {
	return manualDescriptor{}
}

// Lookup finds a seedbox descriptor by provider id.
func Lookup(p Provider) (Descriptor, error) {
	for _, d := range catalog {
		if d.Provider() == p {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
}

func fieldKey(prefix, field string, offset int) string {
	return prefix + field + "_" + strconv.Itoa(offset)
}

// maxOffset inspects every key of the mandatory field rather than stopping at
// the first gap, since removals leave holes.
func maxOffset(s kvstore.Snapshot, prefix, field string) int {
	head := prefix + field + "_"
	highest := -1
	for k, v := range s {
		if !strings.HasPrefix(k, head) || v.Text() == "" {
			continue
		}
		n, err := strconv.Atoi(k[len(head):])
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

func putString(b *kvstore.Batch, key, v string) {
	if v == "" {
		b.Remove(key)
		return
	}
	b.SetString(key, v)
}

// --- manual servers ---

var manualFields = []string{
	"name", "type", "address", "port", "folder", "sslenabled", "ssltrustall",
	"user", "pass", "extrapass", "authtoken", "os", "downloaddir", "ftpurl",
	"ftppass", "timeout", "alarmfinished", "alarmnew", "alarmexclude", "alarminclude",
}

const defaultTimeoutSeconds = 8

type manualDescriptor struct{}

func (manualDescriptor) Provider() Provider { return "" }
func (manualDescriptor) Name() string       { return "Manual" }
func (manualDescriptor) Prefix() string     { return "server_" }

func (m manualDescriptor) Decode(s kvstore.Snapshot, offset int) (ServerRecord, bool) {
	key := func(f string) string { return fieldKey(m.Prefix(), f, offset) }

	host := s.String(key("address"), "")
	if host == "" {
		return ServerRecord{}, false
	}
	daemon, ok := DaemonFromCode(s.String(key("type"), ""))
	if !ok {
		daemon = Transmission
	}
	ssl := s.Bool(key("sslenabled"), false)

	return ServerRecord{
		Order:              offset,
		Name:               s.String(key("name"), ""),
		Daemon:             daemon,
		Host:               host,
		Port:               int(s.Int(key("port"), int64(daemon.DefaultPort(ssl)))),
		UseSSL:             ssl,
		SSLTrustAll:        s.Bool(key("ssltrustall"), false),
		FolderPath:         s.String(key("folder"), ""),
		Username:           s.String(key("user"), ""),
		Password:           s.String(key("pass"), ""),
		ExtraPassword:      s.String(key("extrapass"), ""),
		AuthToken:          s.String(key("authtoken"), ""),
		OS:                 OSFromCode(s.String(key("os"), "")),
		DownloadDir:        s.String(key("downloaddir"), ""),
		FTPURL:             s.String(key("ftpurl"), ""),
		FTPPassword:        s.String(key("ftppass"), ""),
		TimeoutSeconds:     int(s.Int(key("timeout"), defaultTimeoutSeconds)),
		AlarmOnFinished:    s.Bool(key("alarmfinished"), true),
		AlarmOnNew:         s.Bool(key("alarmnew"), false),
		AlarmExcludeFilter: s.String(key("alarmexclude"), ""),
		AlarmIncludeFilter: s.String(key("alarminclude"), ""),
		ProviderOffset:     offset,
	}, true
}

func (m manualDescriptor) Encode(b *kvstore.Batch, r ServerRecord, offset int) {
	key := func(f string) string { return fieldKey(m.Prefix(), f, offset) }

	daemon := r.Daemon
	if daemon == "" {
		daemon = Transmission
	}
	port := r.Port
	if port == 0 {
		port = daemon.DefaultPort(r.UseSSL)
	}
	timeout := r.TimeoutSeconds
	if timeout == 0 {
		timeout = defaultTimeoutSeconds
	}
	hostOS := r.OS
	if hostOS == "" {
		hostOS = Linux
	}

	putString(b, key("name"), r.Name)
	b.SetString(key("type"), daemon.Code())
	b.SetString(key("address"), r.Host)
	b.SetInt(key("port"), int64(port))
	putString(b, key("folder"), r.FolderPath)
	b.SetBool(key("sslenabled"), r.UseSSL)
	b.SetBool(key("ssltrustall"), r.SSLTrustAll)
	putString(b, key("user"), r.Username)
	putString(b, key("pass"), r.Password)
	putString(b, key("extrapass"), r.ExtraPassword)
	putString(b, key("authtoken"), r.AuthToken)
	b.SetString(key("os"), string(hostOS))
	putString(b, key("downloaddir"), r.DownloadDir)
	putString(b, key("ftpurl"), r.FTPURL)
	putString(b, key("ftppass"), r.FTPPassword)
	b.SetInt(key("timeout"), int64(timeout))
	b.SetBool(key("alarmfinished"), r.AlarmOnFinished)
	b.SetBool(key("alarmnew"), r.AlarmOnNew)
	putString(b, key("alarmexclude"), r.AlarmExcludeFilter)
	putString(b, key("alarminclude"), r.AlarmIncludeFilter)
}

func (m manualDescriptor) MaxOffset(s kvstore.Snapshot) int {
	return maxOffset(s, m.Prefix(), "address")
}

func (m manualDescriptor) RemoveAt(b *kvstore.Batch, offset int) {
	for _, f := range manualFields {
		b.Remove(fieldKey(m.Prefix(), f, offset))
	}
}

// --- seedbox providers ---

var seedboxFields = []string{
	"name", "server", "client", "user", "pass", "token",
	"alarmfinished", "alarmnew", "alarmexclude", "alarminclude",
}

// seedbox stores only the account fields; everything else about the
// connection is fixed by the provider and filled in by connect.
type seedbox struct {
	id      Provider
	name    string
	daemon  Daemon
	extra   []string
	connect func(r *ServerRecord, s kvstore.Snapshot, key func(string) string)
}

func (p *seedbox) Provider() Provider { return p.id }
func (p *seedbox) Name() string       { return p.name }
func (p *seedbox) Prefix() string     { return "seedbox_" + string(p.id) + "_" }

func (p *seedbox) Decode(s kvstore.Snapshot, offset int) (ServerRecord, bool) {
	key := func(f string) string { return fieldKey(p.Prefix(), f, offset) }

	host := s.String(key("server"), "")
	if host == "" {
		return ServerRecord{}, false
	}
	daemon, ok := DaemonFromCode(s.String(key("client"), ""))
	if !ok {
		daemon = p.daemon
	}
	user := s.String(key("user"), "")
	pass := s.String(key("pass"), "")

	r := ServerRecord{
		Name:               s.String(key("name"), ""),
		Daemon:             daemon,
		Host:               host,
		Username:           user,
		Password:           pass,
		AuthToken:          s.String(key("token"), ""),
		OS:                 Linux,
		FTPURL:             "ftp://" + user + "@" + host + "/",
		FTPPassword:        pass,
		TimeoutSeconds:     6,
		AlarmOnFinished:    s.Bool(key("alarmfinished"), true),
		AlarmOnNew:         s.Bool(key("alarmnew"), false),
		AlarmExcludeFilter: s.String(key("alarmexclude"), ""),
		AlarmIncludeFilter: s.String(key("alarminclude"), ""),
		Provider:           p.id,
		ProviderOffset:     offset,
		AutoGenerated:      true,
	}
	p.connect(&r, s, key)
	return r, true
}

func (p *seedbox) Encode(b *kvstore.Batch, r ServerRecord, offset int) {
	key := func(f string) string { return fieldKey(p.Prefix(), f, offset) }

	daemon := r.Daemon
	if daemon == "" {
		daemon = p.daemon
	}
	b.SetString(key("name"), r.Name)
	b.SetString(key("server"), r.Host)
	b.SetString(key("client"), daemon.Code())
	b.SetString(key("user"), r.Username)
	b.SetString(key("pass"), r.Password)
	putString(b, key("token"), r.AuthToken)
	b.SetBool(key("alarmfinished"), r.AlarmOnFinished)
	b.SetBool(key("alarmnew"), r.AlarmOnNew)
	putString(b, key("alarmexclude"), r.AlarmExcludeFilter)
	putString(b, key("alarminclude"), r.AlarmIncludeFilter)
	for _, f := range p.extra {
		if f == "folder" {
			putString(b, key(f), r.FolderPath)
		}
	}
}

func (p *seedbox) MaxOffset(s kvstore.Snapshot) int {
	return maxOffset(s, p.Prefix(), "server")
}

func (p *seedbox) RemoveAt(b *kvstore.Batch, offset int) {
	for _, f := range seedboxFields {
		b.Remove(fieldKey(p.Prefix(), f, offset))
	}
	for _, f := range p.extra {
		b.Remove(fieldKey(p.Prefix(), f, offset))
	}
}

func xirvikDirect(r *ServerRecord, _ kvstore.Snapshot, _ func(string) string) {
	if r.Daemon == UTorrent {
		r.Port = 5010
		r.DownloadDir = "/downloads"
		return
	}
	r.Port = 443
	r.UseSSL = true
	r.SSLTrustAll = true
	if r.Daemon == Deluge {
		r.FolderPath = "/deluge"
		r.ExtraPassword = "deluge"
	}
}

// DefaultXirvikMount is the rTorrent RPC mount of shared Xirvik boxes when
// autoconf could not tell otherwise.
const DefaultXirvikMount = "/RPC2"

func xirvikShared(r *ServerRecord, s kvstore.Snapshot, key func(string) string) {
	r.Daemon = RTorrent
	r.Port = 443
	r.UseSSL = true
	r.SSLTrustAll = true
	r.FolderPath = s.String(key("folder"), DefaultXirvikMount)
}

func seedstuff(r *ServerRecord, _ kvstore.Snapshot, _ func(string) string) {
	r.Port = 443
	r.UseSSL = true
	r.FolderPath = "/" + r.Username + "/utorrent"
}
