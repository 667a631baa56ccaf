package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkshare/internal/config"
	"linkshare/internal/deploy"
	"linkshare/internal/security"
	"linkshare/internal/server"
	"linkshare/internal/store"
	"linkshare/pkg/cmdutil"
	"linkshare/pkg/fileutil"
	"linkshare/pkg/templates"

	"github.com/spf13/cobra"
)

// deployDrainTimeout bounds how long serve waits for a running deploy on exit
const deployDrainTimeout = 30 * time.Second

var serveFlags struct {
	configFile string
	logFile    string
	dbPath     string
	host       string
	port       int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the HTTP server that serves the link pages and receives
signed deploy notifications on /update_server.

Flags override the config file and environment.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.configFile, "config", "c", "", "Path to "+config.FileName)
	f.StringVar(&serveFlags.logFile, "log", "", "Also write logs to this file")
	f.StringVar(&serveFlags.dbPath, "db", "", "Path to SQLite database")
	f.StringVar(&serveFlags.host, "host", "", "Host to bind to")
	f.IntVarP(&serveFlags.port, "port", "p", 0, "Port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveFlags.configFile)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()

	logger.Info("Starting linkshare", "version", version, "config", cfg.Source)

	if cfg.Webhook.Secret == "" {
		logger.Warn("WEBHOOK_SECRET is not set, webhook requests will be rejected with 500")
	}
	if security.IsWeakSecret(cfg.Webhook.Secret) {
		for _, w := range security.SecretWarnings(cfg.Webhook.Secret) {
			logger.Warn("Weak webhook secret", "warning", w)
		}
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Init(cmd.Context()); err != nil {
		return err
	}

	tmpl, err := templates.Load()
	if err != nil {
		return err
	}
	logger.Info("Templates loaded", "pages", tmpl.Names())

	metrics := server.NewMetrics()

	dispatcher, err := deploy.NewDispatcher(cfg.Deploy.DeployOptions(), logger.With("component", "deploy"))
	if err != nil {
		return err
	}
	dispatcher.Observer = metrics.ObserveDeploy
	if cfg.Webhook.Secret != "" {
		dispatcher.Redact = []string{cfg.Webhook.Secret}
	}
	dispatcher.Start()
	logger.Info("Deploy worker started",
		"command", cmdutil.FormatCommand(dispatcher.Command()),
		"dir", cfg.Deploy.Dir,
		"queue_size", cfg.Deploy.QueueSize)

	srv := server.NewServer(st, dispatcher, tmpl, metrics, logger, server.Options{
		WebhookSecret:    cfg.Webhook.Secret,
		WebhookRateLimit: cfg.Server.WebhookRateLimit,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx, cfg.Server.Addr())
	if runErr != nil {
		logger.Error("Server failed", "error", runErr)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), deployDrainTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logger.Warn("Deploy worker did not finish", "error", err)
	}

	logger.Info("Stopped")
	return runErr
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("log") {
		cfg.Log.File = serveFlags.logFile
	}
	if f.Changed("db") {
		cfg.Database.Path = serveFlags.dbPath
	}
	if f.Changed("host") {
		cfg.Server.Host = serveFlags.host
	}
	if f.Changed("port") {
		cfg.Server.Port = serveFlags.port
	}
}

// setupLogging returns a JSON logger writing to stdout and, when configured,
// to a log file as well. The returned func closes the file.
func setupLogging(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.File != "" {
		if err := fileutil.EnsureParentDir(cfg.File, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { file.Close() }
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}
