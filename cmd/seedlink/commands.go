package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/seedlink/internal/config"
	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/settings"
)

// --- servers ---

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage torrent client connections",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all servers in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/servers")
		if err != nil {
			return err
		}
		var servers []settings.ServerRecord
		if err := decodeJSON(resp, &servers); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(servers) == 0 {
			fmt.Fprintln(out, "No servers configured.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tNAME\tDAEMON\tADDRESS\tPROVIDER")
		for _, s := range servers {
			provider := string(s.Provider)
			if provider == "" {
				provider = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Order, s.HumanName(), s.Daemon, s.BaseURL(), provider)
		}
		return tw.Flush()
	},
}

var serversShowCmd = &cobra.Command{
	Use:   "show <order>",
	Short: "Show one server as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := parseOrder(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/servers/%d", order))
		if err != nil {
			return err
		}
		var rec any
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

var serversAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a manually configured server",
	Long: `Add a manually configured server.

Examples:
  seedlink servers add --host 192.168.1.10 --daemon transmission
  seedlink servers add --name nas --host nas.lan --daemon qbittorrent --port 8080 --user admin --pass secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := serverFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/servers", rec)
		if err != nil {
			return err
		}
		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Added server %s at order %d", rec.HumanName(), result["order"])
		return nil
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <order>",
	Short: "Remove a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := parseOrder(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/servers/%d", order))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed server %d", order)
		return nil
	},
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("host", "", "server host name or IP address")
	cmd.Flags().String("daemon", string(settings.Transmission), "torrent client: "+daemonNames())
	cmd.Flags().Int("port", 0, "port (default depends on daemon and SSL)")
	cmd.Flags().Bool("ssl", false, "connect over HTTPS")
	cmd.Flags().String("folder", "", "URL path prefix of the web UI or RPC endpoint")
	cmd.Flags().String("user", "", "username")
	cmd.Flags().String("pass", "", "password")
}

func daemonNames() string {
	var names []string
	for _, d := range settings.Daemons() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

func serverFromFlags(cmd *cobra.Command) (settings.ServerRecord, error) {
	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		return settings.ServerRecord{}, fmt.Errorf("--host is required")
	}
	daemonName, _ := cmd.Flags().GetString("daemon")
	daemon, ok := settings.DaemonFromCode(daemonName)
	if !ok {
		return settings.ServerRecord{}, fmt.Errorf("unknown daemon %q (want one of %s)", daemonName, daemonNames())
	}
	name, _ := cmd.Flags().GetString("name")
	port, _ := cmd.Flags().GetInt("port")
	ssl, _ := cmd.Flags().GetBool("ssl")
	folder, _ := cmd.Flags().GetString("folder")
	user, _ := cmd.Flags().GetString("user")
	pass, _ := cmd.Flags().GetString("pass")
	if port == 0 {
		port = daemon.DefaultPort(ssl)
	}
	return settings.ServerRecord{
		Name:            name,
		Daemon:          daemon,
		Host:            host,
		Port:            port,
		UseSSL:          ssl,
		FolderPath:      folder,
		Username:        user,
		Password:        pass,
		OS:              settings.Linux,
		AlarmOnFinished: true,
	}, nil
}

func init() {
	addServerFlags(serversAddCmd)
	serversCmd.AddCommand(serversListCmd)
	serversCmd.AddCommand(serversShowCmd)
	serversCmd.AddCommand(serversAddCmd)
	serversCmd.AddCommand(serversRemoveCmd)
}

// --- seedbox ---

var seedboxCmd = &cobra.Command{
	Use:   "seedbox",
	Short: "Manage seedbox provider accounts",
}

var seedboxProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported seedbox providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/providers")
		if err != nil {
			return err
		}
		var providers []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		if err := decodeJSON(resp, &providers); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tACCOUNTS")
		for _, p := range providers {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p.ID, p.Name, p.Count)
		}
		return tw.Flush()
	},
}

var seedboxAddCmd = &cobra.Command{
	Use:   "add <provider>",
	Short: "Add or update a seedbox account",
	Long: `Add or update a seedbox account. An account with the same host at the
provider is updated in place.

Examples:
  seedlink seedbox add seedstuff --host me.seedstuff.ca --user me --pass secret
  seedlink seedbox add xirvikdedi --host box.xirvik.com --daemon deluge --user me --pass secret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := settings.Provider(args[0])
		if _, err := settings.Lookup(provider); err != nil {
			return err
		}
		rec, err := serverFromFlags(cmd)
		if err != nil {
			return err
		}
		rec.AuthToken, _ = cmd.Flags().GetString("token")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/seedboxes/"+url.PathEscape(string(provider)), rec)
		if err != nil {
			return err
		}
		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Saved %s seedbox %s at order %d", provider, rec.Host, result["order"])
		return nil
	},
}

var seedboxScanCmd = &cobra.Command{
	Use:   "scan <file|->",
	Short: "Provision a Xirvik seedbox from its QR code text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/seedboxes/scan", map[string]string{"code": string(text)})
		if err != nil {
			return err
		}
		var rec settings.ServerRecord
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		printSuccess("Provisioned %s (%s) at order %d", rec.HumanName(), rec.Provider, rec.Order)
		return nil
	},
}

var seedboxListCmd = &cobra.Command{
	Use:   "list <provider>",
	Short: "List the accounts of one seedbox provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := settings.Provider(args[0])
		if _, err := settings.Lookup(provider); err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/seedboxes/"+url.PathEscape(string(provider)))
		if err != nil {
			return err
		}
		var boxes []settings.ServerRecord
		if err := decodeJSON(resp, &boxes); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(boxes) == 0 {
			fmt.Fprintf(out, "No %s accounts.\n", provider)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OFFSET\tORDER\tNAME\tDAEMON\tHOST")
		for _, b := range boxes {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", b.ProviderOffset, b.Order, b.HumanName(), b.Daemon, b.Host)
		}
		return tw.Flush()
	},
}

var seedboxUpdateCmd = &cobra.Command{
	Use:   "update <provider> <offset>",
	Short: "Change fields of a seedbox account",
	Long: `Change fields of a seedbox account. Only the flags given are sent.

Examples:
  seedlink seedbox update seedstuff 0 --pass newsecret
  seedlink seedbox update xirvikdedi 1 --alarm-new --alarm-exclude sample`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := settings.Provider(args[0])
		if _, err := settings.Lookup(provider); err != nil {
			return err
		}
		offset, err := strconv.Atoi(args[1])
		if err != nil || offset < 0 {
			return fmt.Errorf("invalid offset %q", args[1])
		}
		body := changedFields(cmd, map[string]string{
			"name":           "name",
			"host":           "host",
			"user":           "username",
			"pass":           "password",
			"token":          "auth_token",
			"alarm-finished": "alarm_on_finished",
			"alarm-new":      "alarm_on_new",
			"alarm-exclude":  "alarm_exclude",
			"alarm-include":  "alarm_include",
		})
		if len(body) == 0 {
			return fmt.Errorf("nothing to update")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), fmt.Sprintf("/seedboxes/%s/%d", url.PathEscape(string(provider)), offset), body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Updated %s seedbox %d", provider, offset)
		return nil
	},
}

func init() {
	addServerFlags(seedboxAddCmd)
	seedboxAddCmd.Flags().String("token", "", "provider auth token")
	seedboxUpdateCmd.Flags().String("name", "", "display name")
	seedboxUpdateCmd.Flags().String("host", "", "server host name")
	seedboxUpdateCmd.Flags().String("user", "", "username")
	seedboxUpdateCmd.Flags().String("pass", "", "password")
	seedboxUpdateCmd.Flags().String("token", "", "provider auth token")
	seedboxUpdateCmd.Flags().Bool("alarm-finished", true, "alarm when a torrent finishes")
	seedboxUpdateCmd.Flags().Bool("alarm-new", false, "alarm when a torrent is added")
	seedboxUpdateCmd.Flags().String("alarm-exclude", "", "skip torrents whose name matches this regular expression")
	seedboxUpdateCmd.Flags().String("alarm-include", "", "only alarm for torrents whose name matches this regular expression")
	seedboxCmd.AddCommand(seedboxProvidersCmd)
	seedboxCmd.AddCommand(seedboxListCmd)
	seedboxCmd.AddCommand(seedboxAddCmd)
	seedboxCmd.AddCommand(seedboxUpdateCmd)
	seedboxCmd.AddCommand(seedboxScanCmd)
}

// --- feeds ---

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Manage RSS feeds",
}

var feedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List RSS feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/feeds")
		if err != nil {
			return err
		}
		var feeds []settings.FeedRecord
		if err := decodeJSON(resp, &feeds); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(feeds) == 0 {
			fmt.Fprintln(out, "No feeds configured.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tNAME\tALARM\tURL")
		for _, f := range feeds {
			fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", f.Order, f.Name, f.AlarmOnNewItems, f.URL)
		}
		return tw.Flush()
	},
}

var feedsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add an RSS feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		exclude, _ := cmd.Flags().GetString("exclude")
		include, _ := cmd.Flags().GetString("include")
		noAlarm, _ := cmd.Flags().GetBool("no-alarm")
		if _, err := feed.NewFilter(exclude, include); err != nil {
			return err
		}

		f := settings.FeedRecord{
			Name:            name,
			URL:             args[0],
			ExcludeFilter:   exclude,
			IncludeFilter:   include,
			AlarmOnNewItems: !noAlarm,
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/feeds", f)
		if err != nil {
			return err
		}
		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Added feed at order %d", result["order"])
		return nil
	},
}

var feedsUpdateCmd = &cobra.Command{
	Use:   "update <order>",
	Short: "Change fields of an RSS feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := parseOrder(args[0])
		if err != nil {
			return err
		}
		exclude, _ := cmd.Flags().GetString("exclude")
		include, _ := cmd.Flags().GetString("include")
		if _, err := feed.NewFilter(exclude, include); err != nil {
			return err
		}
		body := changedFields(cmd, map[string]string{
			"name":    "name",
			"url":     "url",
			"exclude": "exclude",
			"include": "include",
			"alarm":   "alarm_on_new_items",
		})
		if len(body) == 0 {
			return fmt.Errorf("nothing to update")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), fmt.Sprintf("/feeds/%d", order), body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Updated feed %d", order)
		return nil
	},
}

var feedsRemoveCmd = &cobra.Command{
	Use:   "remove <order>",
	Short: "Remove an RSS feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := parseOrder(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/feeds/%d", order))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed feed %d", order)
		return nil
	},
}

var feedsViewedCmd = &cobra.Command{
	Use:   "viewed <order> [item-url]",
	Short: "Mark a feed as read up to now, or up to an item",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := parseOrder(args[0])
		if err != nil {
			return err
		}
		body := map[string]any{"viewed_at": time.Now().UTC()}
		if len(args) == 2 {
			body["item_url"] = args[1]
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), fmt.Sprintf("/feeds/%d/viewed", order), body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Marked feed %d as viewed", order)
		return nil
	},
}

var feedsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Count new items in every alarm-enabled feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/feeds/check", nil)
		if err != nil {
			return err
		}
		var sum feed.Summary
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range sum.Results {
			switch {
			case r.Skipped:
				fmt.Fprintf(out, "  %s  %s\n", colorize(colorBold, r.Name), "alarm off")
			case r.Error != "":
				fmt.Fprintf(out, "  %s  %s\n", colorize(colorBold, r.Name), colorize(colorRed, r.Error))
			default:
				fmt.Fprintf(out, "  %s  %d new (%s)\n", colorize(colorBold, r.Name), r.Unread, r.Mode)
			}
		}
		if sum.Total == 0 {
			fmt.Fprintln(out, "No new RSS items.")
			return nil
		}
		fmt.Fprintf(out, "%d new RSS items for %s\n", sum.Total, strings.Join(sum.Names, ", "))
		return nil
	},
}

func init() {
	feedsAddCmd.Flags().String("name", "", "display name")
	feedsAddCmd.Flags().String("exclude", "", "skip items whose title matches this regular expression")
	feedsAddCmd.Flags().String("include", "", "only count items whose title matches this regular expression")
	feedsAddCmd.Flags().Bool("no-alarm", false, "do not include this feed in new item checks")
	feedsCmd.AddCommand(feedsListCmd)
	feedsUpdateCmd.Flags().String("name", "", "display name")
	feedsUpdateCmd.Flags().String("url", "", "feed URL")
	feedsUpdateCmd.Flags().String("exclude", "", "skip items whose title matches this regular expression")
	feedsUpdateCmd.Flags().String("include", "", "only count items whose title matches this regular expression")
	feedsUpdateCmd.Flags().Bool("alarm", true, "include this feed in new item checks")
	feedsCmd.AddCommand(feedsAddCmd)
	feedsCmd.AddCommand(feedsUpdateCmd)
	feedsCmd.AddCommand(feedsRemoveCmd)
	feedsCmd.AddCommand(feedsViewedCmd)
	feedsCmd.AddCommand(feedsCheckCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export or import all settings",
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all settings",
	Long: `Export all settings.

Examples:
  seedlink settings export --output settings.json
  seedlink settings export --format yaml
  seedlink settings export --qr`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		asQR, _ := cmd.Flags().GetBool("qr")
		if asQR {
			format = "compact"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/settings/export?format="+url.QueryEscape(format))
		if err != nil {
			return err
		}
		data, err := readBody(resp)
		if err != nil {
			return err
		}

		if asQR {
			return writeQR(cmd.OutOrStdout(), string(data))
		}
		if output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Settings exported to %s", output)
		return nil
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import settings from an export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		mode, _ := cmd.Flags().GetString("mode")

		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		q := url.Values{"format": {format}, "mode": {mode}}
		resp, err := client.send(cmd.Context(), http.MethodPost, "/settings/import?"+q.Encode(), "application/octet-stream", bytes.NewReader(data))
		if err != nil {
			return err
		}
		var result struct {
			Keys int    `json:"keys"`
			Mode string `json:"mode"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Imported %d keys (%s)", result.Keys, result.Mode)
		return nil
	},
}

func init() {
	settingsExportCmd.Flags().String("format", "json", "json, yaml or compact")
	settingsExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	settingsExportCmd.Flags().Bool("qr", false, "print the compact export as a QR code")
	settingsImportCmd.Flags().String("format", "json", "json, yaml or compact")
	settingsImportCmd.Flags().String("mode", "merge", "merge keeps keys missing from the file, replace drops them")
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
}

// --- system ---

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show or change notification and update check preferences",
}

var systemShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show system preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/system")
		if err != nil {
			return err
		}
		var sys settings.System
		if err := decodeJSON(resp, &sys); err != nil {
			return err
		}
		printSystem(cmd.OutOrStdout(), sys)
		return nil
	},
}

var systemSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change system preferences",
	Long: `Change system preferences. Only the flags given are sent.

Examples:
  seedlink system set --rss-notifications=false
  seedlink system set --check-updates`,
	RunE: func(cmd *cobra.Command, args []string) error {
		body := changedFields(cmd, map[string]string{
			"rss-notifications": "rss_notifications",
			"check-updates":     "check_updates",
		})
		if len(body) == 0 {
			return fmt.Errorf("nothing to update")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/system", body)
		if err != nil {
			return err
		}
		var sys settings.System
		if err := decodeJSON(resp, &sys); err != nil {
			return err
		}
		printSuccess("System preferences saved")
		printSystem(cmd.OutOrStdout(), sys)
		return nil
	},
}

func printSystem(w io.Writer, sys settings.System) {
	last := "never"
	if !sys.LastCheckedUpdates.IsZero() {
		last = sys.LastCheckedUpdates.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "  %s = %t\n", colorize(colorBold, "rss_notifications"), sys.RSSNotifications)
	fmt.Fprintf(w, "  %s = %t\n", colorize(colorBold, "check_updates"), sys.CheckUpdates)
	fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, "last_checked_updates"), last)
}

func init() {
	systemSetCmd.Flags().Bool("rss-notifications", true, "notify about new RSS items")
	systemSetCmd.Flags().Bool("check-updates", true, "check for new releases")
	systemCmd.AddCommand(systemShowCmd)
	systemCmd.AddCommand(systemSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- helpers ---

func parseOrder(s string) (int, error) {
	order, err := strconv.Atoi(s)
	if err != nil || order < 0 {
		return 0, fmt.Errorf("invalid order %q", s)
	}
	return order, nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// changedFields maps the flags the user set to request body fields.
func changedFields(cmd *cobra.Command, fields map[string]string) map[string]any {
	body := map[string]any{}
	for flag, field := range fields {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if f.Value.Type() == "bool" {
			body[field], _ = cmd.Flags().GetBool(flag)
			continue
		}
		body[field] = f.Value.String()
	}
	return body
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
