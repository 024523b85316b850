// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

// Public error codes. The wire surface is closed: every failure maps
// onto one of these regardless of what went wrong internally.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountLocked      = "account_locked"
	CodeStoreUnavailable   = "store_unavailable"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
)

// respondError sends the unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// writeError classifies a service error onto the closed wire surface.
// Unknown codes deliberately map to 503: an unclassified failure is
// treated as infrastructure trouble, never leaked to the client.
func writeError(c *gin.Context, err error) {
	switch errutil.ErrorCode(err) {
	case "AUTH_INVALID_CREDENTIALS":
		respondError(c, http.StatusUnauthorized, CodeInvalidCredentials, "email or password is incorrect")
	case "AUTH_ACCOUNT_LOCKED":
		respondError(c, http.StatusLocked, CodeAccountLocked, "account is temporarily locked; try again later")
	case "SESSION_TOKEN_EMPTY", "SESSION_INVALID", "SESSION_EXPIRED":
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "a valid session token is required")
	case "AUTH_INVALID_IDENTITY", "AUTH_IDENTITY_NOT_ALLOWED", "AUTH_EMPTY_SECRET", "AUTH_WEAK_SECRET":
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case "AUTH_IDENTITY_TAKEN":
		respondError(c, http.StatusConflict, CodeConflict, "identity is already registered")
	case "RESET_TOKEN_EMPTY", "RESET_TOKEN_INVALID", "RESET_TOKEN_EXPIRED",
		"RESET_SECRET_EMPTY", "RESET_WEAK_SECRET":
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "reset token or new secret was not accepted")
	case "STUDENT_NOT_FOUND", "ROSTER_INVALID_REF":
		respondError(c, http.StatusNotFound, CodeNotFound, "student not found")
	case "STUDENT_DUPLICATE":
		respondError(c, http.StatusConflict, CodeConflict, "student code is already assigned")
	case "ROSTER_INVALID_STUDENT", "ROSTER_INVALID_CODE", "ROSTER_INVALID_BIRTH_DATE",
		"QUERY_PARSE_FAILED", "QUERY_UNKNOWN_FIELD", "QUERY_INVALID_OPERATOR",
		"QUERY_INVALID_VALUE", "QUERY_INVALID_PATTERN", "QUERY_TOO_DEEP":
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	default:
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "service temporarily unavailable")
	}
}
