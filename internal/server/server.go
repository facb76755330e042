package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"dexAdapter/internal/model"
	"dexAdapter/internal/serializer"
)

// Engine is the event side of the adapter.
type Engine interface {
	Networks() []string
	LatestBlock(ctx context.Context, network string) (model.Block, error)
	GetAllEvents(ctx context.Context, network string, fromBlock, toBlock uint64, pageSize int) (*model.EventSet, error)
}

// Resolver resolves tokens and pools.
type Resolver interface {
	ResolveToken(ctx context.Context, network string, addr common.Address) (model.Token, error)
	ResolvePoolWithTokens(ctx context.Context, network string, addr common.Address) (model.Pool, error)
}

// ResponseCache stores encoded response bodies. Get reports a miss with
// ok=false and a nil error.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Config struct {
	Listen         string
	ServiceName    string
	Version        string
	MaxBlockRange  uint64
	PageSize       int
	RequestTimeout time.Duration
	CORSOrigins    []string
	TTLBlocks      time.Duration
	TTLAssets      time.Duration
	TTLPairs       time.Duration
}

func (c *Config) withDefaults() {
	if c.Listen == "" {
		c.Listen = ":8000"
	}
	if c.ServiceName == "" {
		c.ServiceName = "DEX Screener Adapter"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.MaxBlockRange == 0 {
		c.MaxBlockRange = 10000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.TTLBlocks <= 0 {
		c.TTLBlocks = 5 * time.Second
	}
	if c.TTLAssets <= 0 {
		c.TTLAssets = 300 * time.Second
	}
	if c.TTLPairs <= 0 {
		c.TTLPairs = 60 * time.Second
	}
}

// Server exposes the DEX Screener adapter endpoints.
type Server struct {
	cfg        Config
	engine     Engine
	resolver   Resolver
	serializer *serializer.Serializer
	cache      ResponseCache
	logger     *zap.Logger
}

// Option configures optional dependencies of the server.
type Option func(*Server)

// WithCache enables response caching.
func WithCache(c ResponseCache) Option {
	return func(s *Server) { s.cache = c }
}

func New(cfg Config, engine Engine, resolver Resolver, ser *serializer.Serializer, logger *zap.Logger, opts ...Option) *Server {
	cfg.withDefaults()
	if ser == nil {
		ser = serializer.New("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		engine:     engine,
		resolver:   resolver,
		serializer: ser,
		logger:     logger.With(zap.String("component", "server")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with CORS, access logging and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /latest-block", s.handleLatestBlock)
	mux.HandleFunc("GET /asset", s.handleAsset)
	mux.HandleFunc("GET /pair", s.handlePair)
	mux.HandleFunc("GET /events", s.handleEvents)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return s.accessLog(c.Handler(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
