// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

// LastSeedVersionKey is the system_info key recording the version of
// the most recently applied manifest.
const LastSeedVersionKey = "last_seed_version"

// VersionRecorder persists the applied manifest version.
// store.SystemInfoRepository satisfies it.
type VersionRecorder interface {
	Set(ctx context.Context, key, value string) error
}

// Seeder applies manifests against the account and student stores.
type Seeder struct {
	accounts auth.AccountRepository
	students roster.StudentRepository
	hasher   auth.SecretHasher
	versions VersionRecorder
	logger   *slog.Logger
}

// NewSeeder creates a Seeder. The version recorder may be nil (memory
// mode has nowhere durable to record it); a nil logger discards logs.
func NewSeeder(accounts auth.AccountRepository, students roster.StudentRepository, hasher auth.SecretHasher, versions VersionRecorder, logger *slog.Logger) (*Seeder, error) {
	if accounts == nil {
		return nil, oops.Code("SEED_SERVICE_INVALID").Errorf("account repository is required")
	}
	if students == nil {
		return nil, oops.Code("SEED_SERVICE_INVALID").Errorf("student repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("SEED_SERVICE_INVALID").Errorf("secret hasher is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Seeder{
		accounts: accounts,
		students: students,
		hasher:   hasher,
		versions: versions,
		logger:   logger,
	}, nil
}

// Result summarizes one Apply run.
type Result struct {
	Version         string
	AccountsCreated int
	AccountsSkipped int
	StudentsCreated int
	StudentsSkipped int
}

// Apply provisions every account and student in the manifest.
// Idempotent: rows that already exist are skipped and counted, so
// re-running a manifest converges instead of failing. Any other store
// error aborts the run.
func (s *Seeder) Apply(ctx context.Context, m *Manifest) (*Result, error) {
	if m == nil {
		return nil, oops.Code("SEED_MANIFEST_INVALID").Errorf("manifest is required")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Version: m.Version}

	for _, account := range m.Accounts {
		created, err := s.applyAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		if created {
			result.AccountsCreated++
		} else {
			result.AccountsSkipped++
		}
	}

	for _, student := range m.Students {
		created, err := s.applyStudent(ctx, student)
		if err != nil {
			return nil, err
		}
		if created {
			result.StudentsCreated++
		} else {
			result.StudentsSkipped++
		}
	}

	if s.versions != nil {
		if err := s.versions.Set(ctx, LastSeedVersionKey, m.Version); err != nil {
			return nil, oops.Code("SEED_APPLY_FAILED").
				With("operation", "record seed version").
				Wrap(err)
		}
	}

	s.logger.Info("seed manifest applied",
		"version", result.Version,
		"accounts_created", result.AccountsCreated,
		"accounts_skipped", result.AccountsSkipped,
		"students_created", result.StudentsCreated,
		"students_skipped", result.StudentsSkipped,
	)
	return result, nil
}

func (s *Seeder) applyAccount(ctx context.Context, seed AccountSeed) (bool, error) {
	hash, err := s.hasher.Hash(seed.Secret)
	if err != nil {
		return false, oops.Code("SEED_APPLY_FAILED").
			With("operation", "hash account secret").
			With("identity", seed.Identity).
			Wrap(err)
	}

	account, err := auth.NewAccount(seed.Identity, hash, seed.DisplayName, seed.Role)
	if err != nil {
		return false, oops.Code("SEED_APPLY_FAILED").
			With("identity", seed.Identity).
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			s.logger.Info("seed account already present, skipping", "identity", account.Identity)
			return false, nil
		}
		return false, oops.Code("SEED_APPLY_FAILED").
			With("operation", "create account").
			With("identity", account.Identity).
			Wrap(err)
	}

	s.logger.Info("seed account created", "identity", account.Identity, "role", account.Role)
	return true, nil
}

func (s *Seeder) applyStudent(ctx context.Context, seed StudentSeed) (bool, error) {
	birthDate, err := roster.ParseBirthDate(seed.BirthDate)
	if err != nil {
		return false, oops.Code("SEED_APPLY_FAILED").
			With("code", seed.Code).
			Wrap(err)
	}

	student, err := roster.NewStudent(seed.Code, seed.FullName, birthDate, seed.Hometown, seed.Parish, seed.Diocese)
	if err != nil {
		return false, oops.Code("SEED_APPLY_FAILED").
			With("code", seed.Code).
			Wrap(err)
	}

	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, roster.ErrDuplicate) {
			s.logger.Info("seed student already present, skipping", "code", student.Code)
			return false, nil
		}
		return false, oops.Code("SEED_APPLY_FAILED").
			With("operation", "create student").
			With("code", student.Code).
			Wrap(err)
	}

	s.logger.Info("seed student created", "code", student.Code)
	return true, nil
}
