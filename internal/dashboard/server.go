// Package dashboard serves a local read-only view of the diagnosis history,
// recorded chat transcripts and the live chat session.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/history"
	"github.com/zulandar/huebot/internal/logging"
	"gorm.io/gorm"
)

// HistoryReader is the part of history.Service the dashboard reads.
type HistoryReader interface {
	UserID() int
	List(ctx context.Context, mode history.Mode) ([]api.Diagnosis, error)
	Detail(ctx context.Context, id int) (api.Diagnosis, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB      *gorm.DB
	History HistoryReader
	// Hub, when set, streams a live chat session on /api/events.
	Hub    *Hub
	Addr   string // default 127.0.0.1:8080
	Out    io.Writer
	Logger *logging.Logger
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.History == nil {
		return fmt.Errorf("dashboard: history is required")
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: newRouter(opts),
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://%s\n", opts.Addr)
	}
	opts.Logger.Info("dashboard listening", "addr", opts.Addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func newRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
