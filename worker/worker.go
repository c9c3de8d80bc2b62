package worker

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odev-ai/pdfproc/internal/provider"
	"github.com/odev-ai/pdfproc/internal/tasks"
	"github.com/odev-ai/pdfproc/internal/transport"
	"github.com/odev-ai/pdfproc/internal/vector"
)

type WorkerConfig struct {
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	Concurrency int

	Embedder string
	Vector   vector.Config
}

func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		RedisAddr:   "localhost:6379",
		Concurrency: 10,
		Embedder:    "openai",
	}
}

// Worker consumes ingest tasks from the queue and runs the processing
// pipeline, streaming progress and results back over the transport.
type Worker struct {
	config WorkerConfig

	rdb         *redis.Client
	asynqServer *asynq.Server

	transport   transport.Transport
	vectorStore vector.Store
}

func New(config WorkerConfig) *Worker {
	return &Worker{
		config: config,
	}
}

func (w *Worker) Start() error {
	w.rdb = redis.NewClient(&redis.Options{
		Addr:     w.config.RedisAddr,
		Username: w.config.RedisUsername,
		Password: w.config.RedisPassword,
		DB:       w.config.RedisDB,
	})
	defer w.rdb.Close()

	w.asynqServer = asynq.NewServerFromRedisClient(
		w.rdb,
		asynq.Config{
			Concurrency: w.config.Concurrency,
		},
	)

	w.transport = transport.NewRedisTransport(w.rdb)

	embedder, err := provider.NewEmbedder(w.config.Embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	conf := w.config.Vector
	conf.Dimensions = embedder.GetDimensions()

	vs, err := vector.NewStore(conf)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	w.vectorStore = vs
	defer w.vectorStore.Close()

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeIngest, tasks.NewIngestTaskHandler(w.transport, embedder, w.vectorStore))

	slog.Info("Worker starting", "concurrency", w.config.Concurrency,
		"embedder", w.config.Embedder, "vector", w.config.Vector.Provider)
	if err := w.asynqServer.Run(mux); err != nil {
		return err
	}
	return nil
}
