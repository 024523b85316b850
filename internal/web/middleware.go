// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package web

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

const sessionContextKey = "web.session"

// requestLogger records one structured line per request after the
// handler chain completes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// sessionRequired validates the bearer token and stores the resolved
// session in the request context. Requests without a live session are
// rejected before the handler runs.
func sessionRequired(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.ValidateSession(c.Request.Context(), bearerToken(c))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// currentSession returns the session placed by sessionRequired, or nil
// when the route is not session-guarded.
func currentSession(c *gin.Context) *auth.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := value.(*auth.Session)
	return session
}
