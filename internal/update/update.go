// Package update checks a published text file for a newer release.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Release is a published version, read from text like "160|1.1.15".
type Release struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// ParseRelease reads "<versionCode>|<versionName>".
func ParseRelease(s string) (Release, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "|", 2)
	if len(parts) != 2 {
		return Release{}, fmt.Errorf("invalid release %q: expected code|name", s)
	}
	code, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Release{}, fmt.Errorf("invalid release code %q: %w", parts[0], err)
	}
	return Release{Code: code, Name: strings.TrimSpace(parts[1])}, nil
}

// Checker fetches the latest release from a URL.
type Checker struct {
	url    string
	client *http.Client
}

// NewChecker creates a Checker. If timeout is <= 0, it defaults to 15s.
func NewChecker(url string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Checker{url: url, client: &http.Client{Timeout: timeout}}
}

func (c *Checker) Latest(ctx context.Context) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("fetching latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("latest version returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return Release{}, fmt.Errorf("reading latest version: %w", err)
	}
	return ParseRelease(string(body))
}

// Newer reports whether latest supersedes the running version code.
func Newer(current int, latest Release) bool {
	return latest.Code > current
}
