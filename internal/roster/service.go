// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// createCodeAttempts bounds retries when concurrent creates race for
// the same auto-assigned code.
const createCodeAttempts = 3

// CreateParams carries the fields for a new student. BirthDate uses
// the DD/MM/YYYY layout. An empty Code means auto-assign the next
// free one.
type CreateParams struct {
	Code      string
	FullName  string
	BirthDate string
	Hometown  string
	Parish    string
	Diocese   string
}

// UpdateParams carries replacement values for a student's mutable
// fields. BirthDate uses the DD/MM/YYYY layout.
type UpdateParams struct {
	FullName  string
	BirthDate string
	Hometown  string
	Parish    string
	Diocese   string
}

// Service provides the student register operations.
type Service struct {
	students StudentRepository
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(students StudentRepository) (*Service, error) {
	return NewServiceWithLogger(students, nil)
}

// NewServiceWithLogger creates a Service with a logger. A nil logger
// discards log output.
func NewServiceWithLogger(students StudentRepository, logger *slog.Logger) (*Service, error) {
	if students == nil {
		return nil, oops.Code("ROSTER_SERVICE_INVALID").Errorf("student repository is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{students: students, logger: logger}, nil
}

// Create adds a student. When params carry no code the next free one
// is assigned; auto-assignment retries a few times because concurrent
// creates can race for the same code.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Student, error) {
	birthDate, err := ParseBirthDate(params.BirthDate)
	if err != nil {
		return nil, err
	}

	if code := strings.ToUpper(strings.TrimSpace(params.Code)); code != "" {
		student, err := NewStudent(code, params.FullName, birthDate, params.Hometown, params.Parish, params.Diocese)
		if err != nil {
			return nil, err
		}
		if err := s.students.Create(ctx, student); err != nil {
			return nil, err
		}
		StudentsCreated.Inc()
		s.logger.Info("student created", "code", student.Code)
		return student, nil
	}

	var lastErr error
	for range createCodeAttempts {
		code, err := s.students.NextCode(ctx)
		if err != nil {
			return nil, err
		}
		student, err := NewStudent(code, params.FullName, birthDate, params.Hometown, params.Parish, params.Diocese)
		if err != nil {
			return nil, err
		}
		err = s.students.Create(ctx, student)
		if err == nil {
			StudentsCreated.Inc()
			s.logger.Info("student created", "code", student.Code)
			return student, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		s.logger.Warn("student code collision, retrying", "code", code)
		lastErr = err
	}
	return nil, lastErr
}

// Get retrieves a student by ID or code. Codes are matched
// case-insensitively.
func (s *Service) Get(ctx context.Context, ref string) (*Student, error) {
	ref = strings.TrimSpace(ref)
	if id, err := ulid.Parse(ref); err == nil {
		return s.students.GetByID(ctx, id)
	}
	code := strings.ToUpper(ref)
	if err := ValidateCode(code); err == nil {
		return s.students.GetByCode(ctx, code)
	}
	return nil, oops.Code("ROSTER_INVALID_REF").
		With("ref", ref).
		Errorf("ref must be a student ID or code")
}

// Update replaces the mutable fields of the student identified by ID
// or code and returns the updated record.
func (s *Service) Update(ctx context.Context, ref string, params UpdateParams) (*Student, error) {
	student, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	birthDate, err := ParseBirthDate(params.BirthDate)
	if err != nil {
		return nil, err
	}
	if err := student.SetDetails(params.FullName, birthDate, params.Hometown, params.Parish, params.Diocese); err != nil {
		return nil, err
	}
	if err := s.students.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// Delete removes the student identified by ID or code.
func (s *Service) Delete(ctx context.Context, ref string) error {
	student, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.students.Delete(ctx, student.ID); err != nil {
		return err
	}
	StudentsDeleted.Inc()
	s.logger.Info("student deleted", "code", student.Code)
	return nil
}

// List retrieves students matching the filter, ordered by code.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Student, error) {
	return s.students.List(ctx, filter)
}

// Search retrieves students matching a DSL query; an empty query
// returns the whole register.
func (s *Service) Search(ctx context.Context, query string) ([]*Student, error) {
	if strings.TrimSpace(query) == "" {
		return s.students.List(ctx, Filter{})
	}
	compiled, err := Compile(query)
	if err != nil {
		Searches.WithLabelValues("invalid").Inc()
		return nil, err
	}
	students, err := s.students.Search(ctx, compiled)
	if err != nil {
		return nil, err
	}
	Searches.WithLabelValues("ok").Inc()
	return students, nil
}

// NextCode returns the next unassigned student code.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	return s.students.NextCode(ctx)
}

// Stats returns the register rollup: total students plus per-diocese
// counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.students.Count(ctx)
	if err != nil {
		return nil, err
	}
	byDiocese, err := s.students.CountByDiocese(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, ByDiocese: byDiocese}, nil
}

// ExportCSV writes all students (ordered by code) as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	students, err := s.students.List(ctx, Filter{})
	if err != nil {
		return err
	}
	if err := WriteCSV(w, students); err != nil {
		return err
	}
	Exports.Inc()
	return nil
}
