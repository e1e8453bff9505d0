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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gleanerhq/gleaner/internal/api"
	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/coordinator"
	"github.com/gleanerhq/gleaner/internal/semantic"
	"github.com/gleanerhq/gleaner/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the gleaner server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running gleaner server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"health"},
	Short:   "Show gleaner system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gleaner.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "gleaner version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("GLEANER_LOG"), "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to double-start. A live health endpoint wins over a stale PID file.
	pidPath := pidFilePath(cfg.Storage.StoragePath)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("gleaner is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("gleaner is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.StoragePath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	coord := coordinator.New(cfg, store)
	slog.Info("ingestion coordinator ready", "collectors", coord.Collectors())

	// Background embedding worker, when semantic search is on.
	if cfg.Semantic.Enabled {
		embedder := semantic.NewOllamaEmbedder(cfg.Semantic.OllamaURL, cfg.Semantic.EmbedModel)
		if !embedder.IsRunning(ctx) {
			printWarning("Ollama not reachable at %s; embedding jobs will retry", cfg.Semantic.OllamaURL)
		}
		vectors := semantic.NewVectorStore(store.DB())
		worker := semantic.NewWorker(store, embedder, vectors, cfg.Semantic.EmbedModel,
			time.Duration(cfg.Semantic.PollIntervalMS)*time.Millisecond)
		go worker.Run(ctx)
		slog.Info("embedding worker started", "model", cfg.Semantic.EmbedModel)
	}

	deps := api.Deps{Coordinator: coord, Token: cfg.Server.Token}
	handler := api.NewHandler(deps)

	// MCP server over stdio, alongside HTTP.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "gleaner listening on %s\n", addr)
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

	pidPath := pidFilePath(cfg.Storage.StoragePath)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("gleaner is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop gleaner (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to gleaner (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health coordinator.Health
		decodeErr := decodeJSON(resp, &health)
		switch {
		case decodeErr != nil:
			printStatus("Server", "error (%v)", decodeErr)
		default:
			running = true
			printStatus("Server", "%s on port %d", health.Status, cfg.Server.Port)
			for name, state := range health.Components {
				printStatus("  "+name, "%s", state)
			}
		}
	}

	if cfg.Semantic.Enabled {
		embedder := semantic.NewOllamaEmbedder(cfg.Semantic.OllamaURL, cfg.Semantic.EmbedModel)
		if embedder.IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Semantic.OllamaURL)
		} else {
			printStatus("Ollama", "not running")
		}
		printStatus("Embed model", "%s", cfg.Semantic.EmbedModel)
	} else {
		printStatus("Semantic search", "disabled")
	}

	if running {
		apiC := &apiClient{baseURL: serverURL, token: cfg.Server.Token, httpClient: client}
		if statsResp, err := apiC.get(ctx, "/stats"); err == nil {
			var stats storage.Statistics
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Content", "%d items, %d words", stats.TotalContent, stats.TotalWords)
			}
		}
	}

	printStatus("Scan paths", "%s", strings.Join(cfg.FileSystem.ScanPaths, ", "))
	printStatus("Data dir", "%s", cfg.Storage.StoragePath)
	return nil
}
