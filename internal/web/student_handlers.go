// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

type studentPayload struct {
	Code      string `json:"code"`
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"` // DD/MM/YYYY
	Hometown  string `json:"hometown"`
	Parish    string `json:"parish"`
	Diocese   string `json:"diocese"`
}

type studentResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"` // DD/MM/YYYY
	Hometown  string `json:"hometown"`
	Parish    string `json:"parish"`
	Diocese   string `json:"diocese"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toStudentResponse(s *roster.Student) studentResponse {
	return studentResponse{
		ID:        s.ID.String(),
		Code:      s.Code,
		FullName:  s.FullName,
		BirthDate: roster.FormatBirthDate(s.BirthDate),
		Hometown:  s.Hometown,
		Parish:    s.Parish,
		Diocese:   s.Diocese,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toStudentResponses(students []*roster.Student) []studentResponse {
	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toStudentResponse(s))
	}
	return out
}

// handleListStudents serves both plain filtered listing and the query
// DSL: a non-empty "q" parameter takes precedence over filter fields.
func (s *Server) handleListStudents(c *gin.Context) {
	if query := c.Query("q"); query != "" {
		students, err := s.students.Search(c.Request.Context(), query)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": toStudentResponses(students)})
		return
	}

	filter := roster.Filter{
		Name:     c.Query("name"),
		Hometown: c.Query("hometown"),
		Diocese:  c.Query("diocese"),
		Parish:   c.Query("parish"),
	}
	if raw := c.Query("birth_year_min"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidRequest, "birth_year_min must be an integer")
			return
		}
		filter.BirthYearMin = year
	}
	if raw := c.Query("birth_year_max"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidRequest, "birth_year_max must be an integer")
			return
		}
		filter.BirthYearMax = year
	}

	students, err := s.students.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": toStudentResponses(students)})
}

func (s *Server) handleCreateStudent(c *gin.Context) {
	var req studentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "request body must be a JSON student record")
		return
	}

	student, err := s.students.Create(c.Request.Context(), roster.CreateParams{
		Code:      req.Code,
		FullName:  req.FullName,
		BirthDate: req.BirthDate,
		Hometown:  req.Hometown,
		Parish:    req.Parish,
		Diocese:   req.Diocese,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStudentResponse(student))
}

func (s *Server) handleGetStudent(c *gin.Context) {
	student, err := s.students.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudentResponse(student))
}

func (s *Server) handleUpdateStudent(c *gin.Context) {
	var req studentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "request body must be a JSON student record")
		return
	}

	student, err := s.students.Update(c.Request.Context(), c.Param("ref"), roster.UpdateParams{
		FullName:  req.FullName,
		BirthDate: req.BirthDate,
		Hometown:  req.Hometown,
		Parish:    req.Parish,
		Diocese:   req.Diocese,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudentResponse(student))
}

func (s *Server) handleDeleteStudent(c *gin.Context) {
	if err := s.students.Delete(c.Request.Context(), c.Param("ref")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStudentStats(c *gin.Context) {
	stats, err := s.students.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":      stats.Total,
		"by_diocese": stats.ByDiocese,
	})
}

func (s *Server) handleNextCode(c *gin.Context) {
	code, err := s.students.NextCode(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// handleExportStudents streams the register as a CSV download.
func (s *Server) handleExportStudents(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="students.csv"`)
	c.Status(http.StatusOK)

	if err := s.students.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		// Headers are already gone; all we can do is log.
		s.logger.Error("student export failed", "error", err)
	}
}
