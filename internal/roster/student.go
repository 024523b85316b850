// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package roster manages the student register: records keyed by a
// human-facing code, listing with filters, a small search DSL, and
// CSV export.
package roster

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodePrefix starts every student code; the remainder is a number
// padded to at least three digits ("SV001", "SV042", "SV1000").
const CodePrefix = "SV"

// BirthDateLayout is the human-facing date format (DD/MM/YYYY).
const BirthDateLayout = "02/01/2006"

// codeRegex matches well-formed student codes.
var codeRegex = regexp.MustCompile(`^SV\d{3,}$`)

// Student is one register entry. BirthDate carries a date only,
// normalized to midnight UTC.
type Student struct {
	ID        ulid.ULID
	Code      string // unique, human-facing
	FullName  string
	BirthDate time.Time
	Hometown  string
	Parish    string
	Diocese   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudent creates a validated Student with a fresh ULID.
func NewStudent(code, fullName string, birthDate time.Time, hometown, parish, diocese string) (*Student, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	student := &Student{
		ID:        ulid.Make(),
		Code:      code,
		CreatedAt: time.Now(),
	}
	if err := student.SetDetails(fullName, birthDate, hometown, parish, diocese); err != nil {
		return nil, err
	}
	return student, nil
}

// SetDetails validates and replaces the mutable fields (everything but
// ID, Code, and CreatedAt), bumping UpdatedAt.
func (s *Student) SetDetails(fullName string, birthDate time.Time, hometown, parish, diocese string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return oops.Code("ROSTER_INVALID_STUDENT").Errorf("full name cannot be empty")
	}
	if birthDate.IsZero() {
		return oops.Code("ROSTER_INVALID_STUDENT").Errorf("birth date cannot be zero")
	}
	if birthDate.After(time.Now()) {
		return oops.Code("ROSTER_INVALID_STUDENT").
			With("birth_date", birthDate.Format(BirthDateLayout)).
			Errorf("birth date cannot be in the future")
	}

	s.FullName = fullName
	s.BirthDate = normalizeBirthDate(birthDate)
	s.Hometown = strings.TrimSpace(hometown)
	s.Parish = strings.TrimSpace(parish)
	s.Diocese = strings.TrimSpace(diocese)
	s.UpdatedAt = time.Now()
	return nil
}

// BirthYear returns the calendar year of the student's birth date.
func (s *Student) BirthYear() int {
	return s.BirthDate.Year()
}

// ValidateCode checks that a student code has the SVnnn shape.
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return oops.Code("ROSTER_INVALID_CODE").
			With("code", code).
			Errorf("code must match %s followed by at least three digits", CodePrefix)
	}
	return nil
}

// FormatCode renders a sequence number as a student code.
func FormatCode(n int) string {
	return fmt.Sprintf("%s%03d", CodePrefix, n)
}

// ParseCode extracts the sequence number from a student code.
func ParseCode(code string) (int, error) {
	if err := ValidateCode(code); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(code, CodePrefix))
	if err != nil {
		return 0, oops.Code("ROSTER_INVALID_CODE").
			With("code", code).
			Wrap(err)
	}
	return n, nil
}

// ParseBirthDate parses a DD/MM/YYYY date into midnight UTC.
func ParseBirthDate(s string) (time.Time, error) {
	t, err := time.Parse(BirthDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, oops.Code("ROSTER_INVALID_BIRTH_DATE").
			With("birth_date", s).
			Wrapf(err, "birth date must be %s", strings.ToUpper(BirthDateLayout))
	}
	return t, nil
}

// FormatBirthDate renders a birth date in the human-facing layout.
func FormatBirthDate(t time.Time) string {
	return t.Format(BirthDateLayout)
}

func normalizeBirthDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter narrows a List call. Zero fields do not constrain.
type Filter struct {
	// Name matches as a case-insensitive substring of the full name.
	Name string

	// Hometown matches as a case-insensitive substring.
	Hometown string

	// Diocese and Parish match exactly.
	Diocese string
	Parish  string

	// BirthYearMin and BirthYearMax bound the birth year inclusively;
	// zero means unbounded.
	BirthYearMin int
	BirthYearMax int
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Stats is the roster rollup: total students and per-diocese counts.
// Students without a diocese are grouped under the empty key.
type Stats struct {
	Total     int64
	ByDiocese map[string]int64
}

// Dioceses returns the counted diocese names in sorted order, with the
// empty (unset) diocese last.
func (st *Stats) Dioceses() []string {
	names := make([]string, 0, len(st.ByDiocese))
	for name := range st.ByDiocese {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "" || names[j] == "" {
			return names[j] == ""
		}
		return names[i] < names[j]
	})
	return names
}

// StudentRepository manages student persistence. Codes are unique;
// creates that collide fail with an error wrapping ErrDuplicate.
type StudentRepository interface {
	// Create stores a new student.
	Create(ctx context.Context, student *Student) error

	// GetByID retrieves a student by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Student, error)

	// GetByCode retrieves a student by code. Returns ErrNotFound if absent.
	GetByCode(ctx context.Context, code string) (*Student, error)

	// Update replaces the mutable fields of an existing student
	// (everything but ID, Code, and CreatedAt).
	Update(ctx context.Context, student *Student) error

	// Delete removes a student by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id ulid.ULID) error

	// List retrieves students matching the filter, ordered by code.
	List(ctx context.Context, filter Filter) ([]*Student, error)

	// Search retrieves students matching a compiled query, ordered by code.
	Search(ctx context.Context, query *CompiledQuery) ([]*Student, error)

	// NextCode returns the next unassigned student code (highest
	// sequence number in use plus one).
	NextCode(ctx context.Context) (string, error)

	// Count returns the total number of students.
	Count(ctx context.Context) (int64, error)

	// CountByDiocese returns student counts grouped by diocese.
	CountByDiocese(ctx context.Context) (map[string]int64, error)
}
