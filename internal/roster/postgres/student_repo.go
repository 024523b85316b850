// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package postgres implements the roster repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

// poolIface is the subset of *pgxpool.Pool the repository uses.
// pgxmock pools satisfy it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// selectStudents is the shared column list for student queries.
const selectStudents = `
	SELECT id, code, full_name, birth_date, hometown, parish, diocese, created_at, updated_at
	FROM students`

// StudentRepository implements roster.StudentRepository using PostgreSQL.
type StudentRepository struct {
	pool poolIface
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool poolIface) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Create stores a new student.
func (r *StudentRepository) Create(ctx context.Context, student *roster.Student) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO students (id, code, full_name, birth_date, hometown, parish, diocese, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		student.ID.String(),
		student.Code,
		student.FullName,
		student.BirthDate,
		student.Hometown,
		student.Parish,
		student.Diocese,
		student.CreatedAt,
		student.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("STUDENT_DUPLICATE").
				With("code", student.Code).
				Wrap(roster.ErrDuplicate)
		}
		return oops.Code("STUDENT_CREATE_FAILED").
			With("operation", "insert student").
			With("code", student.Code).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id ulid.ULID) (*roster.Student, error) {
	row := r.pool.QueryRow(ctx, selectStudents+` WHERE id = $1`, id.String())

	student, err := r.scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("STUDENT_NOT_FOUND").
			With("id", id.String()).
			Wrap(roster.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STUDENT_GET_BY_ID_FAILED").
			With("operation", "get student by id").
			With("id", id.String()).
			Wrap(err)
	}
	return student, nil
}

// GetByCode retrieves a student by code.
func (r *StudentRepository) GetByCode(ctx context.Context, code string) (*roster.Student, error) {
	row := r.pool.QueryRow(ctx, selectStudents+` WHERE code = $1`, code)

	student, err := r.scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("STUDENT_NOT_FOUND").
			With("code", code).
			Wrap(roster.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STUDENT_GET_BY_CODE_FAILED").
			With("operation", "get student by code").
			With("code", code).
			Wrap(err)
	}
	return student, nil
}

// Update replaces the mutable fields of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *roster.Student) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE students
		SET full_name = $2, birth_date = $3, hometown = $4, parish = $5, diocese = $6, updated_at = $7
		WHERE id = $1
	`,
		student.ID.String(),
		student.FullName,
		student.BirthDate,
		student.Hometown,
		student.Parish,
		student.Diocese,
		student.UpdatedAt,
	)
	if err != nil {
		return oops.Code("STUDENT_UPDATE_FAILED").
			With("operation", "update student").
			With("code", student.Code).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STUDENT_NOT_FOUND").
			With("id", student.ID.String()).
			Wrap(roster.ErrNotFound)
	}
	return nil
}

// Delete removes a student by ID.
func (r *StudentRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM students WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("STUDENT_DELETE_FAILED").
			With("operation", "delete student").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STUDENT_NOT_FOUND").
			With("id", id.String()).
			Wrap(roster.ErrNotFound)
	}
	return nil
}

// List retrieves students matching the filter, ordered by code.
func (r *StudentRepository) List(ctx context.Context, filter roster.Filter) ([]*roster.Student, error) {
	query := selectStudents
	var conds []string
	var args []any

	arg := func(v any) int {
		args = append(args, v)
		return len(args)
	}
	if filter.Name != "" {
		conds = append(conds, fmt.Sprintf("full_name ILIKE '%%' || $%d || '%%'", arg(filter.Name)))
	}
	if filter.Hometown != "" {
		conds = append(conds, fmt.Sprintf("hometown ILIKE '%%' || $%d || '%%'", arg(filter.Hometown)))
	}
	if filter.Diocese != "" {
		conds = append(conds, fmt.Sprintf("diocese = $%d", arg(filter.Diocese)))
	}
	if filter.Parish != "" {
		conds = append(conds, fmt.Sprintf("parish = $%d", arg(filter.Parish)))
	}
	if filter.BirthYearMin != 0 {
		conds = append(conds, fmt.Sprintf("EXTRACT(YEAR FROM birth_date) >= $%d", arg(filter.BirthYearMin)))
	}
	if filter.BirthYearMax != 0 {
		conds = append(conds, fmt.Sprintf("EXTRACT(YEAR FROM birth_date) <= $%d", arg(filter.BirthYearMax)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY code"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("STUDENT_LIST_FAILED").
			With("operation", "list students").
			Wrap(err)
	}
	defer rows.Close()

	return r.collectStudents(rows, nil)
}

// Search retrieves students matching a compiled query, ordered by code.
// The query is evaluated per row while scanning.
func (r *StudentRepository) Search(ctx context.Context, query *roster.CompiledQuery) ([]*roster.Student, error) {
	rows, err := r.pool.Query(ctx, selectStudents+" ORDER BY code")
	if err != nil {
		return nil, oops.Code("STUDENT_SEARCH_FAILED").
			With("operation", "search students").
			Wrap(err)
	}
	defer rows.Close()

	return r.collectStudents(rows, query.Matches)
}

// NextCode returns the next unassigned student code.
func (r *StudentRepository) NextCode(ctx context.Context) (string, error) {
	var maxSeq int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(code FROM 3) AS INTEGER)), 0)
		FROM students
		WHERE code ~ '^SV\d+$'
	`).Scan(&maxSeq)
	if err != nil {
		return "", oops.Code("STUDENT_NEXT_CODE_FAILED").
			With("operation", "get max code sequence").
			Wrap(err)
	}
	return roster.FormatCode(maxSeq + 1), nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count)
	if err != nil {
		return 0, oops.Code("STUDENT_COUNT_FAILED").
			With("operation", "count students").
			Wrap(err)
	}
	return count, nil
}

// CountByDiocese returns student counts grouped by diocese.
func (r *StudentRepository) CountByDiocese(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT diocese, COUNT(*) FROM students GROUP BY diocese
	`)
	if err != nil {
		return nil, oops.Code("STUDENT_COUNT_FAILED").
			With("operation", "count students by diocese").
			Wrap(err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var diocese string
		var count int64
		if err := rows.Scan(&diocese, &count); err != nil {
			return nil, oops.Code("STUDENT_SCAN_FAILED").
				With("operation", "scan diocese count").
				Wrap(err)
		}
		counts[diocese] = count
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STUDENT_ROWS_ERROR").
			With("operation", "iterate diocese counts").
			Wrap(err)
	}
	return counts, nil
}

// collectStudents drains a rows iterator, keeping rows the optional
// match function accepts.
func (r *StudentRepository) collectStudents(rows pgx.Rows, match func(*roster.Student) bool) ([]*roster.Student, error) {
	var students []*roster.Student
	for rows.Next() {
		student, err := r.scanStudentRow(rows)
		if err != nil {
			return nil, oops.Code("STUDENT_SCAN_FAILED").
				With("operation", "scan student row").
				Wrap(err)
		}
		if match != nil && !match(student) {
			continue
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STUDENT_ROWS_ERROR").
			With("operation", "iterate student rows").
			Wrap(err)
	}
	return students, nil
}

// scanStudent scans a single row into a Student.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *StudentRepository) scanStudent(row pgx.Row) (*roster.Student, error) {
	var (
		idStr     string
		code      string
		fullName  string
		birthDate time.Time
		hometown  string
		parish    string
		diocese   string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &code, &fullName, &birthDate, &hometown, &parish, &diocese, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("STUDENT_SCAN_FAILED").
			With("operation", "scan student").
			Wrap(err)
	}

	return r.buildStudent(idStr, code, fullName, birthDate, hometown, parish, diocese, createdAt, updatedAt)
}

// scanStudentRow scans a row from a rows iterator into a Student.
func (r *StudentRepository) scanStudentRow(rows pgx.Rows) (*roster.Student, error) {
	var (
		idStr     string
		code      string
		fullName  string
		birthDate time.Time
		hometown  string
		parish    string
		diocese   string
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(&idStr, &code, &fullName, &birthDate, &hometown, &parish, &diocese, &createdAt, &updatedAt)
	if err != nil {
		return nil, oops.Code("STUDENT_SCAN_FAILED").
			With("operation", "scan student row").
			Wrap(err)
	}

	return r.buildStudent(idStr, code, fullName, birthDate, hometown, parish, diocese, createdAt, updatedAt)
}

// buildStudent constructs a Student from scanned values.
func (r *StudentRepository) buildStudent(
	idStr, code, fullName string,
	birthDate time.Time,
	hometown, parish, diocese string,
	createdAt, updatedAt time.Time,
) (*roster.Student, error) {
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("STUDENT_INVALID_ID").
			With("operation", "parse student id").
			With("id", idStr).
			Wrap(err)
	}

	return &roster.Student{
		ID:        id,
		Code:      code,
		FullName:  fullName,
		BirthDate: birthDate,
		Hometown:  hometown,
		Parish:    parish,
		Diocese:   diocese,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Compile-time interface check.
var _ roster.StudentRepository = (*StudentRepository)(nil)
