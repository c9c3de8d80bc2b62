package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odev-ai/pdfproc/internal/ingest"
	"github.com/odev-ai/pdfproc/internal/provider"
	"github.com/odev-ai/pdfproc/internal/transport"
	"github.com/odev-ai/pdfproc/internal/vector"
)

// MaxUploadSize caps uploaded file size at 5MB.
const MaxUploadSize = 5 << 20

type ServerConfig struct {
	ListenHost  string
	ListenPort  int
	FrontendURL string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	Embedder string
	Vector   vector.Config

	EnableDebug bool
}

func DefaultConfig() ServerConfig {
	return ServerConfig{
		ListenPort: 8000,
		RedisAddr:  "localhost:6379",
		Embedder:   "openai",
	}
}

// taskEnqueuer is the part of asynq.Client the handlers need.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Server exposes the document processing API over HTTP. Uploads are
// enqueued for the worker and the request blocks on the run's message
// stream until a report arrives.
type Server struct {
	config ServerConfig

	rdb *redis.Client

	transport   transport.Transport
	asynqClient taskEnqueuer

	// set when the debug group is enabled
	store    vector.Store
	pipeline *ingest.Pipeline
}

func New(config ServerConfig) *Server {
	return &Server{
		config: config,
	}
}

func (s *Server) Serve() error {
	lisAddr := fmt.Sprintf("%s:%d", s.config.ListenHost, s.config.ListenPort)

	s.rdb = redis.NewClient(&redis.Options{
		Addr:     s.config.RedisAddr,
		Username: s.config.RedisUsername,
		Password: s.config.RedisPassword,
		DB:       s.config.RedisDB,
	})
	defer s.rdb.Close()

	s.transport = transport.NewRedisTransport(s.rdb)

	client := asynq.NewClientFromRedisClient(s.rdb)
	defer client.Close()
	s.asynqClient = client

	if s.config.EnableDebug {
		if err := s.initDebugPipeline(); err != nil {
			slog.Warn("debug endpoints unavailable", "err", err)
		} else {
			defer s.store.Close()
		}
	}

	engine := s.buildRouter()

	slog.Info("Server starting", "listener", lisAddr)
	if err := engine.Run(lisAddr); err != nil {
		slog.Error("failed to serve", "err", err)
		return err
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = MaxUploadSize
	engine.Use(cors.New(s.corsConfig()))

	engine.GET("/health", s.handleHealth)
	engine.POST("/process-pdf", s.handleProcessPDF)
	engine.GET("/processing-status/:id", s.handleProcessingStatus)

	if s.config.EnableDebug {
		debug := engine.Group("/debug")
		debug.GET("/env", s.handleDebugEnv)
		debug.GET("/index", s.handleDebugIndex)
		debug.POST("/search", s.handleDebugSearch)
		debug.POST("/upload", s.handleDebugUpload)
	}
	return engine
}

// initDebugPipeline builds an embedder and vector store so the debug
// group can query the index directly from the server process.
func (s *Server) initDebugPipeline() error {
	embedder, err := provider.NewEmbedder(s.config.Embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	conf := s.config.Vector
	conf.Dimensions = embedder.GetDimensions()

	store, err := vector.NewStore(conf)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}

	s.store = store
	s.pipeline = ingest.NewPipeline(embedder, store)
	return nil
}

func (s *Server) corsConfig() cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if s.config.FrontendURL != "" {
		conf.AllowOrigins = []string{s.config.FrontendURL}
	} else {
		conf.AllowOrigins = []string{"http://localhost:3000"}
	}
	return conf
}
