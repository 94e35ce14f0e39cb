// Package server exposes the inference service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hollyoak/flaircast/internal/service"
)

// Server wraps the inference service behind an HTTP API.
type Server struct {
	svc  *service.Service
	http *http.Server
}

// New creates a Server listening on addr.
func New(addr string, svc *service.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{svc: svc}
	s.registerRoutes(r)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/predict", s.predict)
		api.POST("/predict/batch", s.predictBatch)
		api.GET("/model", s.modelInfo)
		api.POST("/model/reload", s.reloadModel)
	}
	r.GET("/health", s.health)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// predictRequest distinguishes absent fields from empty strings: a request
// with neither field is malformed, while present-but-empty text is valid.
type predictRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

func (s *Server) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pred, err := s.svc.Predict(deref(req.Title), deref(req.Body), req.Title != nil, req.Body != nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

func (s *Server) predictBatch(c *gin.Context) {
	var reqs []predictRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(reqs))
	for i, req := range reqs {
		pred, err := s.svc.Predict(deref(req.Title), deref(req.Body), req.Title != nil, req.Body != nil)
		if err != nil {
			if errors.Is(err, service.ErrMalformedInput) {
				out = append(out, gin.H{"index": i, "error": err.Error()})
				continue
			}
			s.writeError(c, err)
			return
		}
		out = append(out, gin.H{"index": i, "prediction": pred})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *Server) modelInfo(c *gin.Context) {
	labels, err := s.svc.Labels()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": s.svc.ActiveVersion(),
		"state":   s.svc.State().String(),
		"labels":  labels.Labels,
	})
}

type reloadRequest struct {
	Path string `json:"path" binding:"required"`
}

func (s *Server) reloadModel(c *gin.Context) {
	var req reloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.svc.Reload(req.Path); err != nil {
		slog.Error("model reload failed", "path", req.Path, "error", err)
		s.writeError(c, err)
		return
	}
	slog.Info("model reloaded", "path", req.Path, "version", s.svc.ActiveVersion())
	c.JSON(http.StatusOK, gin.H{"version": s.svc.ActiveVersion()})
}

func (s *Server) health(c *gin.Context) {
	state := s.svc.State()
	status := http.StatusOK
	if state == service.Uninitialized {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"state": state.String(), "version": s.svc.ActiveVersion()})
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMalformedInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.Error("prediction failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
