// Package server exposes the HTTP surface: uploads, batch progress,
// classification, taxonomy maintenance, and transaction review.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"

	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/pipeline"
	"github.com/ledgersift/ledgersift/internal/review"
	"github.com/ledgersift/ledgersift/internal/service"
)

// Taxonomy is the classifier plus the read surface the HTTP API exposes.
type Taxonomy interface {
	service.Classifier
	Categories() []model.Category
	Threshold() float64
}

// Config holds the HTTP server settings.
type Config struct {
	Host        string
	Port        int
	PoolSize    int
	MaxUploadMB int64
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8000,
		PoolSize:    4,
		MaxUploadMB: 32,
	}
}

// Server wires storage, the taxonomy engine, and the batch pipeline behind
// a gin router. Batches run on a bounded worker pool; one worker owns one
// batch end to end.
type Server struct {
	storage   service.Storage
	taxonomy  Taxonomy
	processor *pipeline.Processor
	reviewer  *review.Reviewer
	pool      *ants.Pool
	logger    *slog.Logger
	cfg       Config
}

// New creates a server. The worker pool is sized by cfg.PoolSize and is
// released on Shutdown.
func New(storage service.Storage, taxonomy Taxonomy, processor *pipeline.Processor, cfg Config) (*Server, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.Port <= 0 {
		cfg.Port = 8000
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}

	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Server{
		storage:   storage,
		taxonomy:  taxonomy,
		processor: processor,
		reviewer:  review.New(storage, taxonomy),
		pool:      pool,
		cfg:       cfg,
		logger:    slog.Default().With("component", "server"),
	}, nil
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = s.cfg.MaxUploadMB << 20

	router.Use(RequestID())
	router.Use(Recovery())
	router.Use(RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/upload", s.handleUpload)
		api.GET("/batches", s.handleListBatches)
		api.GET("/batches/:id", s.handleGetBatch)
		api.GET("/batches/:id/stream", s.handleStreamBatch)
		api.GET("/batches/:id/items", s.handleGetBatchItems)

		api.POST("/transactions", s.handleCreateTransaction)
		api.GET("/transactions", s.handleListTransactions)
		api.GET("/transactions/:id", s.handleGetTransaction)
		api.DELETE("/transactions/:id", s.handleDeleteTransaction)
		api.GET("/transactions/export", s.handleExport)

		api.POST("/match", s.handleMatch)
		api.POST("/classify/bulk", s.handleClassifyBulk)

		api.GET("/taxonomy", s.handleGetTaxonomy)
		api.POST("/taxonomy/update", s.handleUpdateTaxonomy)

		api.POST("/corrections", s.handleCorrections)
	}

	return router
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully: in-flight requests get a drain window, and the worker pool is
// released so running batches finish their current storage writes.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	s.pool.Release()
	s.logger.Info("server exited gracefully")
	return nil
}
