// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

type loginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "request body must be JSON with identity and secret")
		return
	}

	session, token, err := s.auth.Verify(c.Request.Context(), req.Identity, req.Secret,
		c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		Identity:  session.Identity,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleLogout revokes the bearer session. Unknown or absent tokens
// still get 204: revocation is idempotent and a logged-out client has
// nothing useful to learn from the distinction.
func (s *Server) handleLogout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if err := s.auth.Revoke(c.Request.Context(), token); err != nil {
		errutil.LogError(s.logger, "logout revoke failed", err)
	}
	c.Status(http.StatusNoContent)
}

type sessionResponse struct {
	Identity   string `json:"identity"`
	IssuedAt   string `json:"issued_at"`
	ExpiresAt  string `json:"expires_at"`
	LastSeenAt string `json:"last_seen_at"`
}

func (s *Server) handleSession(c *gin.Context) {
	session := currentSession(c)
	c.JSON(http.StatusOK, sessionResponse{
		Identity:   session.Identity,
		IssuedAt:   session.IssuedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  session.ExpiresAt.UTC().Format(time.RFC3339),
		LastSeenAt: session.LastSeenAt.UTC().Format(time.RFC3339),
	})
}

type resetRequestRequest struct {
	Identity string `json:"identity"`
}

// handleResetRequest always answers 202 so callers cannot probe which
// identities exist. Token delivery happens out of band.
func (s *Server) handleResetRequest(c *gin.Context) {
	var req resetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "request body must be JSON with identity")
		return
	}

	if s.resets == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "password reset is not available")
		return
	}

	if _, err := s.resets.RequestReset(c.Request.Context(), req.Identity); err != nil {
		errutil.LogError(s.logger, "reset request failed", err)
	}
	c.Status(http.StatusAccepted)
}

type resetRequest struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "request body must be JSON with token and secret")
		return
	}

	if s.resets == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "password reset is not available")
		return
	}

	if err := s.resets.ResetSecret(c.Request.Context(), req.Token, req.Secret); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
