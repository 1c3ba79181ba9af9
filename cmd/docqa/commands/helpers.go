package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/docqa-go/internal/blob"
	"github.com/54b3r/docqa-go/internal/chat"
	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/lifecycle"
	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/store"
)

const (
	defaultTopK        = 6
	defaultQdrantPort  = 6334
	defaultCollection  = "docqa-fragments"
	defaultQdrantHost  = "localhost"
	defaultBlobBackend = "dir"
)

// app holds every component a command may need. Close releases them in
// reverse order of construction.
type app struct {
	extractor *extract.Extractor
	index     *rag.Adapter
	blobs     blob.Store
	docs      *store.SQLiteStore
	pipeline  *ingestion.Pipeline
	deleter   *lifecycle.Manager
	// chat is nil unless the command asked for a model.
	chat *chat.Service

	pingers []server.Pinger
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires the stores, index, pipeline and lifecycle manager from
// the environment. withModel also builds the chat service.
func buildApp(ctx context.Context, log *slog.Logger, withModel bool) (_ *app, err error) {
	a := &app{extractor: extract.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.docs, err = buildDocumentStore()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.docs.Close)
	a.pingers = append(a.pingers, server.NewFuncPinger("sqlite", a.docs.Ping))

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	vectors, pinger, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, vectors.Close)
	if pinger != nil {
		a.pingers = append(a.pingers, pinger)
	}

	a.index, err = rag.NewAdapter(emb, vectors, nil)
	if err != nil {
		return nil, err
	}

	var blobPinger server.Pinger
	a.blobs, blobPinger, err = buildBlobStore(ctx, log)
	if err != nil {
		return nil, err
	}
	a.pingers = append(a.pingers, blobPinger)

	size, err := config.Int("CHUNK_SIZE", chunker.DefaultSize)
	if err != nil {
		return nil, err
	}
	overlap, err := config.Int("CHUNK_OVERLAP", chunker.DefaultOverlap)
	if err != nil {
		return nil, err
	}
	a.pipeline, err = ingestion.NewPipeline(a.extractor, a.index, a.blobs, a.docs, &ingestion.Config{
		ChunkSize:    size,
		ChunkOverlap: overlap,
	})
	if err != nil {
		return nil, err
	}

	a.deleter, err = lifecycle.NewManager(a.index, a.blobs, a.docs)
	if err != nil {
		return nil, err
	}

	if withModel {
		if err := a.buildChat(ctx, log); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) buildChat(ctx context.Context, log *slog.Logger) error {
	topK, err := config.Int("RAG_TOP_K", defaultTopK)
	if err != nil {
		return err
	}
	maxTokens, err := config.Int("MAX_CONTEXT_TOKENS", 0)
	if err != nil {
		return err
	}
	assembler, err := rag.NewAssembler(a.index, topK, maxTokens)
	if err != nil {
		return err
	}

	cfg := provider.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	chatModel, err := provider.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)
	if cfg.Backend == provider.BackendOllama {
		a.pingers = append(a.pingers, server.NewHTTPPinger("ollama", strings.TrimRight(cfg.Ollama.Host, "/")+"/api/tags"))
	}

	a.chat, err = chat.NewService(assembler, provider.NewGenerator(chatModel), topK)
	return err
}

// buildDocumentStore opens the metadata database at DOCQA_DB, or the
// default path under ~/.docqa.
func buildDocumentStore() (*store.SQLiteStore, error) {
	path := os.Getenv("DOCQA_DB")
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// buildVectorStore selects the vector backend from VECTOR_BACKEND.
func buildVectorStore(ctx context.Context, log *slog.Logger) (rag.VectorStore, server.Pinger, error) {
	dims := embedder.DefaultDimensions(embedder.Backend())

	switch backend := config.String("VECTOR_BACKEND", "qdrant"); backend {
	case "qdrant":
		port, err := config.Int("QDRANT_PORT", defaultQdrantPort)
		if err != nil {
			return nil, nil, err
		}
		useTLS, err := config.Bool("QDRANT_TLS", false)
		if err != nil {
			return nil, nil, err
		}
		cfg := &rag.QdrantConfig{
			Host:       config.String("QDRANT_HOST", defaultQdrantHost),
			Port:       port,
			Collection: config.String("QDRANT_COLLECTION", defaultCollection),
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     useTLS,
		}
		qs, err := rag.NewQdrantStore(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		log.Info("qdrant store ready",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return qs, server.NewQdrantPinger(qs.Client()), nil

	case "pgvector":
		dsn := os.Getenv("PGVECTOR_DSN")
		if dsn == "" {
			return nil, nil, errors.New("VECTOR_BACKEND=pgvector requires PGVECTOR_DSN")
		}
		ps, err := rag.NewPgvectorStore(ctx, &rag.PgvectorConfig{DSN: dsn, VectorSize: dims})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to pgvector: %w", err)
		}
		log.Info("pgvector store ready", slog.Int("dimensions", dims))
		return ps, server.NewFuncPinger("pgvector", ps.Ping), nil

	case "memory":
		log.Warn("vector index is in memory: fragments are lost on exit")
		return rag.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown VECTOR_BACKEND %q (valid: qdrant, pgvector, memory)", backend)
	}
}

// buildBlobStore selects document storage from BLOB_BACKEND.
func buildBlobStore(ctx context.Context, log *slog.Logger) (blob.Store, server.Pinger, error) {
	switch backend := config.String("BLOB_BACKEND", defaultBlobBackend); backend {
	case "minio", "s3":
		useSSL, err := config.Bool("BLOB_USE_SSL", backend == "s3")
		if err != nil {
			return nil, nil, err
		}
		ms, err := blob.NewMinioStore(ctx, &blob.MinioConfig{
			Backend:   backend,
			Endpoint:  os.Getenv("BLOB_ENDPOINT"),
			AccessKey: os.Getenv("BLOB_ACCESS_KEY"),
			SecretKey: os.Getenv("BLOB_SECRET_KEY"),
			Bucket:    os.Getenv("BLOB_BUCKET"),
			Region:    os.Getenv("BLOB_REGION"),
			UseSSL:    useSSL,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return ms, server.NewFuncPinger("blob", ms.Ping), nil

	case "dir":
		dir := os.Getenv("BLOB_DIR")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("BLOB_DIR is not set and the home directory is unknown: %w", err)
			}
			dir = filepath.Join(home, ".docqa", "blobs")
		}
		ds, err := blob.NewDirStore(dir)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("blob directory ready", slog.String("dir", dir))
		return ds, server.NewFuncPinger("blob", ds.Ping), nil

	default:
		return nil, nil, fmt.Errorf("unknown BLOB_BACKEND %q (valid: minio, s3, dir)", backend)
	}
}

// ownerFlag validates the --owner flag shared by the local commands.
func ownerFlag(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", errors.New("--owner is required")
	}
	return owner, nil
}
