package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/solatis/logview/internal/core/api"
	"github.com/solatis/logview/internal/core/auth"
	"github.com/solatis/logview/internal/core/config"
	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/core/server"
	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/source"
)

var webCmd = &cobra.Command{
	Use:   "web [LOG_FILE]",
	Short: "Serve the HTTP (and optionally gRPC) query API over a log file",
	Long: `Serve the query API over one log file (LOG_FILE or web.log_file).

Stored views and API keys need --db-url. With web.require_auth set, every
/api/ request and gRPC call needs an API key (see 'logview apikey create').`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().String("host", "127.0.0.1", "HTTP and gRPC bind host")
	webCmd.Flags().Int("port", 8000, "HTTP server port")
	webCmd.Flags().Int("grpc-port", 0, "gRPC server port (0 disables gRPC)")
	webCmd.Flags().Bool("require-auth", false, "require an API key on /api/ routes and gRPC calls")
}

func webFlags(flags *pflag.FlagSet) map[string]*pflag.Flag {
	return map[string]*pflag.Flag{
		"web.host":         flags.Lookup("host"),
		"web.port":         flags.Lookup("port"),
		"web.grpc_port":    flags.Lookup("grpc-port"),
		"web.require_auth": flags.Lookup("require-auth"),
	}
}

func runWeb(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(configFile, webFlags(cmd.Flags()))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(args) == 1 {
		cfg.Web.LogFile = args[0]
	}
	if cfg.Web.LogFile == "" {
		return fmt.Errorf("no log file (pass LOG_FILE or set web.log_file)")
	}
	if err := checkLogFile(logger, cfg.Web.LogFile); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := rules.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	engine := rules.NewEngine(rules.WithLogger(logger), rules.WithMetrics(metrics))

	var (
		views         *db.ViewStore
		authenticator *auth.Authenticator
	)
	if dbURL != "" {
		database, queries, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		views = db.NewViewStore(queries)

		if cfg.Web.RequireAuth {
			secrets, err := config.HMACSecrets()
			if err != nil {
				return fmt.Errorf("failed to load HMAC secrets: %w", err)
			}
			if len(secrets) == 0 {
				return fmt.Errorf("no HMAC secrets configured (set LV_HMAC_SECRET environment variable)")
			}
			authenticator = auth.NewAuthenticator(secrets, queries)
		}
	} else if cfg.Web.RequireAuth {
		return fmt.Errorf("web.require_auth needs --db-url for API keys")
	}

	service, err := api.NewQueryService(engine, views, cfg.Web, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpOpts := api.HTTPOptions{
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}
	if authenticator != nil {
		httpOpts.Auth = authenticator.Middleware(api.WriteError)
	}
	httpServer, err := server.NewHTTPServer(cfg.Web, api.NewHTTPHandler(service, httpOpts))
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	var grpcServer *server.GRPCServer
	if cfg.Web.GRPCPort > 0 {
		grpcService, err := api.NewGRPCService(service)
		if err != nil {
			return err
		}
		grpcServer, err = server.NewGRPCServer(cfg.Web, grpcService, authenticator)
		if err != nil {
			return fmt.Errorf("failed to create gRPC server: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	logger.Info("starting logview web",
		"version", Version,
		"http", httpServer.Addr(),
		"auth", authenticator != nil,
		"stored_views", views != nil)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()
	if grpcServer != nil {
		logger.Info("starting gRPC query service", "grpc", grpcServer.Addr())
		go func() {
			errChan <- grpcServer.Start(ctx)
		}()
	}

	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutdownCtx := context.WithoutCancel(ctx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("gRPC shutdown", "error", err)
		}
	}
	return serveErr
}

// checkLogFile fails fast when the log file cannot be opened.
func checkLogFile(logger *slog.Logger, path string) error {
	file, err := source.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	size, err := file.Size()
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	logger.Info("serving log file", "path", file.Name(), "size", humanize.Bytes(uint64(size)))
	return nil
}
