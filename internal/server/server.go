// Package server exposes the live run state, run launching and the run
// journal over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/researcher/internal/capability"
	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"go.uber.org/zap"
)

// Launcher starts runs and reports the latest one.
type Launcher interface {
	Launch(req worker.Request) (*worker.Run, error)
	Current() *worker.Run
}

// RunJournal reads journaled runs.
type RunJournal interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetRun(ctx context.Context, id string) (store.RunRecord, error)
	ListIterations(ctx context.Context, runID string) ([]store.IterationRecord, error)
}

// Options wires a Server. Journal and Metrics are optional.
type Options struct {
	Launcher  Launcher
	Journal   RunJournal
	Catalog   func() (*capability.Registry, error)
	Metrics   http.Handler
	JWTSecret []byte
	Logger    *zap.Logger
}

type Server struct {
	echo   *echo.Echo
	opts   Options
	logger *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{echo: echo.New(), opts: opts, logger: opts.Logger.Named("http")}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	api := e.Group("/api")
	api.GET("/state", s.state)
	api.GET("/tools", s.tools)

	runs := &RunsHandler{launcher: s.opts.Launcher, journal: s.opts.Journal, logger: s.logger}
	runs.Register(api.Group("/runs"), s.opts.JWTSecret)
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
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
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, HTTPError{Error: msg})
	}
}

// HTTPError is the error envelope of every failed request.
type HTTPError struct {
	Error string `json:"error"`
}

// state serves the snapshot of the latest run.
func (s *Server) state(c echo.Context) error {
	run := s.opts.Launcher.Current()
	if run == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no run has been launched")
	}
	return c.JSON(http.StatusOK, run.State.Snapshot())
}

func (s *Server) tools(c echo.Context) error {
	if s.opts.Catalog == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "tool catalog not configured")
	}
	reg, err := s.opts.Catalog()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reg.Cards())
}

// requireAuth guards write routes with a runs:write bearer token.
func requireAuth(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret), runtime.RequireScopes(runtime.ScopeRunsWrite))
}
