package settings

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidXirvikCode is returned for scanned text that is not a Xirvik
// provisioning code.
var ErrInvalidXirvikCode = errors.New("invalid xirvik provisioning code")

// XirvikCode is the content of a Xirvik provisioning QR code.
type XirvikCode struct {
	Host     string
	Provider Provider
	Token    string
}

// ParseXirvikCode reads "<host>\n<P|N|RG>\n<token>".
func ParseXirvikCode(text string) (XirvikCode, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 3 {
		return XirvikCode{}, fmt.Errorf("%w: expected 3 lines, got %d", ErrInvalidXirvikCode, len(lines))
	}
	host := strings.TrimSpace(lines[0])
	token := strings.TrimSpace(lines[2])
	if host == "" {
		return XirvikCode{}, fmt.Errorf("%w: empty host", ErrInvalidXirvikCode)
	}

	var p Provider
	switch strings.TrimSpace(lines[1]) {
	case "P":
		p = XirvikDedi
	case "N":
		p = XirvikSemi
	case "RG":
		p = XirvikShared
	default:
		return XirvikCode{}, fmt.Errorf("%w: unknown box type %q", ErrInvalidXirvikCode, lines[1])
	}
	return XirvikCode{Host: host, Provider: p, Token: token}, nil
}

// Name is the display name derived from the host.
func (c XirvikCode) Name() string {
	return strings.ReplaceAll(c.Host, ".xirvik.com", "")
}

// MountResolver looks up the RPC mount point of a shared Xirvik box.
type MountResolver interface {
	ResolveMount(ctx context.Context, host, user, pass string) (string, error)
}

// XirvikAutoconf fetches the autoconf file Xirvik publishes on each box.
type XirvikAutoconf struct {
	client   *http.Client
	endpoint func(host string) string
}

func autoconfURL(host string) string {
	return "https://" + host + ":443/browsers_addons/transdroid_autoconf.txt"
}

func NewXirvikAutoconf(timeout time.Duration) *XirvikAutoconf {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &XirvikAutoconf{client: &http.Client{Timeout: timeout}, endpoint: autoconfURL}
}

func (x *XirvikAutoconf) ResolveMount(ctx context.Context, host, user, pass string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.endpoint(host), nil)
	if err != nil {
		return "", fmt.Errorf("creating autoconf request: %w", err)
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching autoconf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("autoconf returned status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(io.LimitReader(resp.Body, 64*1024))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "/") {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading autoconf: %w", err)
	}
	return "", errors.New("autoconf contains no mount point")
}

// ProvisionXirvik stores the seedbox described by a scanned code. Shared
// boxes additionally get their RPC mount resolved; a failed lookup keeps
// the default mount.
func (r *Registry) ProvisionXirvik(ctx context.Context, text string, mounts MountResolver) (ServerRecord, error) {
	code, err := ParseXirvikCode(text)
	if err != nil {
		return ServerRecord{}, err
	}

	rec := ServerRecord{
		Name:            code.Name(),
		Daemon:          RTorrent,
		Host:            code.Host,
		AuthToken:       code.Token,
		AlarmOnFinished: true,
	}
	if code.Provider == XirvikShared {
		rec.FolderPath = DefaultXirvikMount
		if mounts != nil {
			mount, err := mounts.ResolveMount(ctx, code.Host, "", "")
			if err != nil {
				r.logger.Debug("could not retrieve xirvik shared mount point", "host", code.Host, "error", err)
			} else {
				rec.FolderPath = mount
			}
		}
	}

	order, _, err := r.saveSeedbox(code.Provider, rec, keepAlarms)
	if err != nil {
		return ServerRecord{}, err
	}
	r.logger.Info("xirvik seedbox provisioned", "provider", code.Provider, "host", code.Host, "order", order)

	saved, ok, err := r.Get(order)
	if err != nil {
		return ServerRecord{}, err
	}
	if !ok {
		return ServerRecord{}, fmt.Errorf("provisioned seedbox %s not found", code.Host)
	}
	return saved, nil
}
