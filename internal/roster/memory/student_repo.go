// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package memory provides an in-memory roster.StudentRepository, used
// by demo mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

// StudentRepository implements roster.StudentRepository in memory.
// All operations are serialized by a single mutex; codes are indexed
// for uniqueness and lookup.
type StudentRepository struct {
	mu       sync.RWMutex
	students map[ulid.ULID]*roster.Student
	byCode   map[string]ulid.ULID
}

// NewStudentRepository creates an empty in-memory student repository.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{
		students: make(map[ulid.ULID]*roster.Student),
		byCode:   make(map[string]ulid.ULID),
	}
}

// copyStudent returns a defensive copy to prevent external modification.
func copyStudent(s *roster.Student) *roster.Student {
	dup := *s
	return &dup
}

// Create stores a new student.
func (r *StudentRepository) Create(_ context.Context, student *roster.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[student.Code]; exists {
		return oops.Code("STUDENT_DUPLICATE").
			With("code", student.Code).
			Wrap(roster.ErrDuplicate)
	}
	if _, exists := r.students[student.ID]; exists {
		return oops.Code("STUDENT_DUPLICATE").
			With("student_id", student.ID.String()).
			Wrap(roster.ErrDuplicate)
	}

	r.students[student.ID] = copyStudent(student)
	r.byCode[student.Code] = student.ID
	return nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(_ context.Context, id ulid.ULID) (*roster.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	student, exists := r.students[id]
	if !exists {
		return nil, oops.Code("STUDENT_NOT_FOUND").
			With("student_id", id.String()).
			Wrap(roster.ErrNotFound)
	}
	return copyStudent(student), nil
}

// GetByCode retrieves a student by code.
func (r *StudentRepository) GetByCode(_ context.Context, code string) (*roster.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byCode[code]
	if !exists {
		return nil, oops.Code("STUDENT_NOT_FOUND").
			With("code", code).
			Wrap(roster.ErrNotFound)
	}
	return copyStudent(r.students[id]), nil
}

// Update replaces the mutable fields of an existing student.
func (r *StudentRepository) Update(_ context.Context, student *roster.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.students[student.ID]
	if !exists {
		return oops.Code("STUDENT_NOT_FOUND").
			With("student_id", student.ID.String()).
			Wrap(roster.ErrNotFound)
	}

	dup := copyStudent(student)
	// Code and CreatedAt are immutable; keep the stored values.
	dup.Code = existing.Code
	dup.CreatedAt = existing.CreatedAt
	r.students[student.ID] = dup
	return nil
}

// Delete removes a student by ID.
func (r *StudentRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	student, exists := r.students[id]
	if !exists {
		return oops.Code("STUDENT_NOT_FOUND").
			With("student_id", id.String()).
			Wrap(roster.ErrNotFound)
	}

	delete(r.byCode, student.Code)
	delete(r.students, id)
	return nil
}

// List retrieves students matching the filter, ordered by code.
func (r *StudentRepository) List(_ context.Context, filter roster.Filter) ([]*roster.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*roster.Student, 0, len(r.students))
	for _, student := range r.students {
		if matchesFilter(student, filter) {
			results = append(results, copyStudent(student))
		}
	}
	sortByCode(results)
	return results, nil
}

// Search retrieves students matching a compiled query, ordered by code.
func (r *StudentRepository) Search(_ context.Context, query *roster.CompiledQuery) ([]*roster.Student, error) {
	if query == nil {
		return nil, oops.Code("QUERY_PARSE_FAILED").Errorf("query is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*roster.Student, 0)
	for _, student := range r.students {
		if query.Matches(student) {
			results = append(results, copyStudent(student))
		}
	}
	sortByCode(results)
	return results, nil
}

// NextCode returns the next unassigned student code.
func (r *StudentRepository) NextCode(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := 0
	for code := range r.byCode {
		n, err := roster.ParseCode(code)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return roster.FormatCode(highest + 1), nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.students)), nil
}

// CountByDiocese returns student counts grouped by diocese.
func (r *StudentRepository) CountByDiocese(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, student := range r.students {
		counts[student.Diocese]++
	}
	return counts, nil
}

func matchesFilter(s *roster.Student, f roster.Filter) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(s.FullName), strings.ToLower(f.Name)) {
		return false
	}
	if f.Hometown != "" && !strings.Contains(strings.ToLower(s.Hometown), strings.ToLower(f.Hometown)) {
		return false
	}
	if f.Diocese != "" && s.Diocese != f.Diocese {
		return false
	}
	if f.Parish != "" && s.Parish != f.Parish {
		return false
	}
	if f.BirthYearMin != 0 && s.BirthYear() < f.BirthYearMin {
		return false
	}
	if f.BirthYearMax != 0 && s.BirthYear() > f.BirthYearMax {
		return false
	}
	return true
}

func sortByCode(students []*roster.Student) {
	sort.Slice(students, func(i, j int) bool {
		return students[i].Code < students[j].Code
	})
}
