// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package web serves the public JSON API: sign-in and session
// management, plus the student register for authenticated callers.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

// Server is the public HTTP API front end.
type Server struct {
	addr       string
	auth       *auth.Service
	resets     *auth.ResetService
	students   *roster.Service
	logger     *slog.Logger
	engine     *gin.Engine
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer wires the API routes over the given services. The resets
// service may be nil, in which case the password-reset endpoints
// respond 503.
func NewServer(addr string, authSvc *auth.Service, resets *auth.ResetService, students *roster.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:     addr,
		auth:     authSvc,
		resets:   resets,
		students: students,
		logger:   logger,
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestLogger(s.logger), gin.Recovery())

	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.POST("/reset-request", s.handleResetRequest)
	authGroup.POST("/reset", s.handleReset)
	authGroup.GET("/session", sessionRequired(s.auth), s.handleSession)

	studentsGroup := api.Group("/students", sessionRequired(s.auth))
	studentsGroup.GET("", s.handleListStudents)
	studentsGroup.POST("", s.handleCreateStudent)
	studentsGroup.GET("/stats", s.handleStudentStats)
	studentsGroup.GET("/export", s.handleExportStudents)
	studentsGroup.GET("/next-code", s.handleNextCode)
	studentsGroup.GET("/:ref", s.handleGetStudent)
	studentsGroup.PUT("/:ref", s.handleUpdateStudent)
	studentsGroup.DELETE("/:ref", s.handleDeleteStudent)

	return engine
}

// Router exposes the handler for in-process testing.
func (s *Server) Router() http.Handler {
	return s.engine
}

// Start begins serving the API. It returns an error channel that
// receives any serve-loop failure; the channel is closed on graceful
// shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Buffered so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
