package main

import (
	"context"
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

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/trajectory/internal/analysis"
	"github.com/kalambet/trajectory/internal/api"
	"github.com/kalambet/trajectory/internal/coach"
	"github.com/kalambet/trajectory/internal/config"
	"github.com/kalambet/trajectory/internal/profile"
	"github.com/kalambet/trajectory/internal/resume"
	"github.com/kalambet/trajectory/internal/storage"
	"github.com/kalambet/trajectory/internal/taxonomy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trajectory server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running trajectory server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trajectory server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "trajectory.pid")
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

// newLogger builds the process logger: slog on top of a charmbracelet handler.
func newLogger(level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "trajectory",
	})
	return slog.New(handler)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting trajectory", "version", version)

	// Ensure API token exists in the secrets file.
	apiToken, err := config.GetAPIToken(config.NewSecrets())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	logger.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	if ok, _ := healthy(fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)); ok {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("trajectory is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("trajectory is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	if cfg.Pipeline.APIKey == "" {
		logger.Warn("no pipeline API key configured, analysis requests are sent unauthenticated")
	}

	// Build career goals components.
	tax := taxonomy.Default()
	profiles := profile.NewManager(store)
	extractor := resume.NewExtractor(filepath.Join(cfg.Storage.DataDir, "resumes"), cfg.Resume.MaxUploadBytes)
	trigger := analysis.NewTrigger(
		analysis.NewClient(cfg.Pipeline.BaseURL, cfg.Pipeline.APIKey),
		profiles, extractor, store, logger,
	)
	sessions := coach.NewSessions()
	machine := coach.NewMachine(tax, profiles, extractor, trigger, sessions, logger)

	// Build HTTP handler and server.
	handler := api.NewAppHandler(api.AppDeps{
		Runs:           store,
		Profile:        profiles,
		Machine:        machine,
		Token:          apiToken,
		MaxUploadBytes: int64(cfg.Resume.MaxUploadBytes),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	if cfg.MCP.Enabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Profile:  profiles,
			Machine:  machine,
			Sessions: sessions,
			Taxonomy: tax,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
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
	// Read PID file.
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("trajectory is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	// Send SIGTERM.
	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop trajectory (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to trajectory (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Partial status is still useful.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	running, code := healthy(serverURL)
	switch {
	case running:
		printStatus("Server", "running on port %d", cfg.Server.Port)
	case code != 0:
		printStatus("Server", "error (HTTP %d)", code)
	default:
		printStatus("Server", "stopped")
	}

	printStatus("Pipeline", "%s", cfg.Pipeline.BaseURL)
	printStatus("MCP", "%s", enabledLabel(cfg.MCP.Enabled))

	if running {
		if client, err := newAPIClient(); err == nil {
			printGoalsStatus(ctx, client, userFlag)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func printGoalsStatus(ctx context.Context, client *apiClient, user string) {
	resp, err := client.get(ctx, userPath(user, "/profile"))
	if err != nil {
		return
	}
	var body struct {
		Exists  bool   `json:"exists"`
		Summary string `json:"summary"`
	}
	if decodeJSON(resp, &body) != nil {
		return
	}
	if !body.Exists {
		printStatus("Career goals", "not set for %s", user)
		return
	}
	printStatus("Career goals", "%s", firstLine(body.Summary))
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
