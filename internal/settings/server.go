package settings

import (
	"fmt"
	"strconv"
)

// ServerRecord is one configured connection target, either added by hand or
// managed by a seedbox provider.
type ServerRecord struct {
	// Order is unique across all records of one listing. It is not stable
	// across mutations that change an earlier namespace.
	Order int    `json:"order"`
	Name  string `json:"name"`

	Daemon        Daemon `json:"daemon"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	UseSSL        bool   `json:"use_ssl"`
	SSLTrustAll   bool   `json:"ssl_trust_all,omitempty"`
	FolderPath    string `json:"folder,omitempty"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	ExtraPassword string `json:"extra_password,omitempty"`
	AuthToken     string `json:"auth_token,omitempty"`
	OS            OS     `json:"os"`

	DownloadDir    string `json:"download_dir,omitempty"`
	FTPURL         string `json:"ftp_url,omitempty"`
	FTPPassword    string `json:"ftp_password,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	AlarmOnFinished    bool   `json:"alarm_on_finished"`
	AlarmOnNew         bool   `json:"alarm_on_new"`
	AlarmExcludeFilter string `json:"alarm_exclude,omitempty"`
	AlarmIncludeFilter string `json:"alarm_include,omitempty"`

	// Provider is empty for manually added servers.
	Provider       Provider `json:"provider,omitempty"`
	ProviderOffset int      `json:"provider_offset"`
	AutoGenerated  bool     `json:"auto_generated"`
}

// HumanName returns the display name, falling back to host:port.
func (r ServerRecord) HumanName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// BaseURL is the address a daemon client would dial.
func (r ServerRecord) BaseURL() string {
	scheme := "http"
	if r.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, r.Host, r.Port, r.FolderPath)
}
