package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers every page behind basic auth, and the metrics endpoint
func NewRouter(handler *Handler, identities IdentityStore, metrics *Metrics, logger *slog.Logger, realm string) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(logger, metrics))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	pages := router.Group("/", BasicAuth(identities, realm))
	{
		pages.GET("/pilots", handler.ListPilots)
		pages.GET("/pilots/:username", handler.GetPilot)

		pages.GET("/airstrips", handler.ListAirstrips)
		pages.GET("/airstrips/:ident", handler.GetAirstrip)

		pages.GET("/bases", handler.ListBases)
		pages.GET("/bases/:ident/attached", handler.BaseAttached)
		pages.GET("/bases/:ident/unattached", handler.BaseUnattached)
		pages.GET("/bases/:ident/edit", handler.AttachmentForm)
		pages.POST("/bases/:ident/edit", handler.EditAttachments)

		pages.GET("/checkouts/edit", handler.CheckoutForm)
		pages.POST("/checkouts/edit", handler.EditCheckout)
		pages.GET("/checkouts/filter", handler.FilterCheckouts)
		pages.POST("/checkouts/filter", handler.FilterCheckouts)
	}

	return router
}

// Server runs the HTTP listener until its context is cancelled
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
