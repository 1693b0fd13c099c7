package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/seedlink/internal/api"
	"github.com/kalambet/seedlink/internal/checker"
	"github.com/kalambet/seedlink/internal/config"
	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/kvstore"
	"github.com/kalambet/seedlink/internal/settings"
	"github.com/kalambet/seedlink/internal/storage"
	"github.com/kalambet/seedlink/internal/update"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the seedlink server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running seedlink server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show seedlink status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "seedlink.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// openRecords picks the settings store for the configured backend. The
// returned close func is nil when records share the job database.
func openRecords(cfg config.Config, jobs *storage.Store) (kvstore.Store, func() error, error) {
	if cfg.Storage.Backend != "bolt" {
		return jobs, nil, nil
	}
	b, err := storage.OpenBolt(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "seedlink version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// A live health endpoint means another instance owns the port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("seedlink is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("seedlink is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	records, closeRecords, err := openRecords(cfg, store)
	if err != nil {
		return fmt.Errorf("opening %s records: %w", cfg.Storage.Backend, err)
	}
	if closeRecords != nil {
		defer func() {
			if err := closeRecords(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing records: %v\n", err)
			}
		}()
	}
	slog.Info("settings store ready", "backend", cfg.Storage.Backend, "data_dir", cfg.Storage.DataDir)

	registry := settings.NewRegistry(records)
	parser := feed.NewParser(cfg.Feeds.Timeout())
	evaluator := feed.NewEvaluator(parser, cfg.Feeds.Concurrency)

	var releases checker.ReleaseSource
	if cfg.Updates.URL != "" {
		releases = update.NewChecker(cfg.Updates.URL, 15*time.Second)
	}

	worker := checker.NewWorker(store, registry, evaluator, releases, nil, checker.Options{
		FeedInterval: cfg.Feeds.CheckEvery(),
		VersionCode:  cfg.Updates.VersionCode,
	})
	if err := worker.Start(); err != nil {
		return fmt.Errorf("scheduling checks: %w", err)
	}
	go worker.Run(ctx)

	appHandler := api.NewAppHandler(api.AppDeps{
		Registry: registry,
		Feeds:    evaluator,
		Mounts:   settings.NewXirvikAutoconf(0),
		Token:    apiToken,
	})

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Registry: registry,
		Feeds:    evaluator,
	}, version)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "seedlink listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("seedlink is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop seedlink (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to seedlink (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Partial status is still useful.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := healthClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if client, err := newAPIClient(); err == nil {
			if n, err := countItems(ctx, client, "/servers"); err == nil {
				printStatus("Servers", "%d", n)
			}
			if n, err := countItems(ctx, client, "/feeds"); err == nil {
				printStatus("Feeds", "%d", n)
			}
		}
	}

	printStatus("Feed checks", "every %s", cfg.Feeds.CheckInterval)
	if cfg.Updates.URL == "" {
		printStatus("Update checks", "off")
	} else {
		printStatus("Update checks", "%s", cfg.Updates.URL)
	}
	printStatus("Backend", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countItems(ctx context.Context, client *apiClient, path string) (int, error) {
	resp, err := client.get(ctx, path)
	if err != nil {
		return 0, err
	}
	var items []json.RawMessage
	if err := decodeJSON(resp, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}
