package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP API",
		Long: `Start the docqa HTTP API.

Routes:
  POST   /api/documents            upload a document (multipart field "file")
  GET    /api/documents            list the caller's documents
  GET    /api/documents/{id}       download the original
  GET    /api/documents/{id}/text  extracted text
  DELETE /api/documents/{id}       delete from index, storage and metadata
  POST   /api/chat                 {"question": "..."} -> NDJSON event stream
  GET    /api/health, /api/ready, /metrics

Every /api/documents and /api/chat request acts for the owner named by an
HS256 bearer token signed with DOCQA_JWT_SECRET. Without a secret all
requests act as the "local" owner.

Examples:
  docqa serve
  docqa serve --port 9090
  VECTOR_BACKEND=memory BLOB_BACKEND=dir docqa serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			flush := tracing.Enable(log)
			defer flush()

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			if err := server.NewMultiPinger(a.pingers...).Ping(ctx); err != nil {
				log.Warn("serve: dependency not reachable at startup", slog.Any("error", err))
			}
			if err := extract.CheckAvailable(); err != nil {
				log.Warn("serve: PDF uploads will be rejected", slog.Any("error", err), slog.String("help", extract.InstallInstructions()))
			}

			cfg, err := serverConfigFromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if cmd.Flags().Changed("host") || cfg.Host == "" {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") || cfg.Port == 0 {
				cfg.Port = port
			}
			cfg.Logger = log
			cfg.Pingers = a.pingers

			srv, err := server.New(server.Deps{
				Ingester:  a.pipeline,
				Extractor: a.extractor,
				Deleter:   a.deleter,
				Blobs:     a.blobs,
				Documents: a.docs,
				Chat:      a.chat,
			}, cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// serverConfigFromEnv reads the server settings from DOCQA_* and related
// env vars.
func serverConfigFromEnv() (*server.Config, error) {
	port, err := config.Int("DOCQA_PORT", 0)
	if err != nil {
		return nil, err
	}
	chatTimeout, err := config.Duration("CHAT_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	rateLimit, err := config.Float("RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}
	rateBurst, err := config.Int("RATE_BURST", 0)
	if err != nil {
		return nil, err
	}
	maxUpload, err := config.Int("MAX_UPLOAD_BYTES", 0)
	if err != nil {
		return nil, err
	}
	return &server.Config{
		Host:           os.Getenv("DOCQA_HOST"),
		Port:           port,
		ChatTimeout:    chatTimeout,
		RateLimit:      rateLimit,
		RateBurst:      rateBurst,
		MaxUploadBytes: int64(maxUpload),
		JWTSecret:      os.Getenv("DOCQA_JWT_SECRET"),
	}, nil
}
