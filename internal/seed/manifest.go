// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package seed loads, validates, and applies provisioning manifests:
// the accounts and students an installation starts with.
package seed

import (
	_ "embed"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	"github.com/nguyendan07/seminary-management-system/internal/roster"
)

// VersionConstraint is the manifest version range this build accepts.
// Manifests from a future major version are rejected rather than
// half-applied.
const VersionConstraint = "^1"

// versionConstraint is compiled once; the literal is a constant, so a
// parse failure is a programmer error.
var versionConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(VersionConstraint)
	if err != nil {
		panic(err)
	}
	return c
}()

// Manifest is a provisioning manifest.
type Manifest struct {
	Version  string        `yaml:"version" json:"version"`
	Accounts []AccountSeed `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	Students []StudentSeed `yaml:"students,omitempty" json:"students,omitempty"`
}

// AccountSeed describes one login account to provision. The secret is
// plaintext in the manifest and hashed during apply; default manifests
// carry demo credentials only.
type AccountSeed struct {
	Identity    string `yaml:"identity" json:"identity"`
	Secret      string `yaml:"secret" json:"secret"`
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Role        string `yaml:"role,omitempty" json:"role,omitempty"`
}

// StudentSeed describes one roster record to provision.
type StudentSeed struct {
	Code      string `yaml:"code" json:"code"`
	FullName  string `yaml:"full_name" json:"full_name"`
	BirthDate string `yaml:"birth_date" json:"birth_date"` // DD/MM/YYYY
	Hometown  string `yaml:"hometown,omitempty" json:"hometown,omitempty"`
	Parish    string `yaml:"parish,omitempty" json:"parish,omitempty"`
	Diocese   string `yaml:"diocese,omitempty" json:"diocese,omitempty"`
}

//go:embed default.yaml
var defaultManifest []byte

// Default returns the raw embedded default manifest: the two demo
// accounts and the sample student register.
func Default() []byte {
	return defaultManifest
}

// DefaultManifest parses and validates the embedded default manifest.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code("SEED_MANIFEST_INVALID").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("SEED_MANIFEST_INVALID").Wrapf(err, "invalid YAML")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints: an acceptable version, well
// formed accounts, and well formed students. Entries are checked with
// the same rules apply uses, so a manifest that validates will not be
// rejected mid-run for malformed data.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return oops.Code("SEED_VERSION_INVALID").Errorf("version is required")
	}
	version, err := semver.NewVersion(m.Version)
	if err != nil {
		return oops.Code("SEED_VERSION_INVALID").
			With("version", m.Version).
			Wrapf(err, "version must be semantic")
	}
	if !versionConstraint.Check(version) {
		return oops.Code("SEED_VERSION_UNSUPPORTED").
			With("version", m.Version).
			With("constraint", VersionConstraint).
			Errorf("manifest version %s does not satisfy %s", m.Version, VersionConstraint)
	}

	if err := m.validateAccounts(); err != nil {
		return err
	}
	return m.validateStudents()
}

func (m *Manifest) validateAccounts() error {
	seen := make(map[string]bool, len(m.Accounts))
	for i, a := range m.Accounts {
		identity := auth.NormalizeIdentity(a.Identity)
		if err := auth.ValidateIdentity(identity); err != nil {
			// Domain errors arrive coded; add manifest context only.
			return oops.With("index", i).
				With("identity", a.Identity).
				Wrap(err)
		}
		if seen[identity] {
			return oops.Code("SEED_ACCOUNT_INVALID").
				With("index", i).
				With("identity", identity).
				Errorf("duplicate account identity")
		}
		seen[identity] = true

		if len(a.Secret) < auth.DefaultMinSecretLength {
			return oops.Code("SEED_ACCOUNT_INVALID").
				With("index", i).
				With("identity", identity).
				Errorf("secret must be at least %d characters", auth.DefaultMinSecretLength)
		}
		if a.Role != "" && a.Role != auth.RoleAdmin && a.Role != auth.RoleUser {
			return oops.Code("SEED_ACCOUNT_INVALID").
				With("index", i).
				With("identity", identity).
				With("role", a.Role).
				Errorf("role must be %q or %q", auth.RoleAdmin, auth.RoleUser)
		}
	}
	return nil
}

func (m *Manifest) validateStudents() error {
	seen := make(map[string]bool, len(m.Students))
	for i, s := range m.Students {
		birthDate, err := roster.ParseBirthDate(s.BirthDate)
		if err != nil {
			return oops.With("index", i).
				With("code", s.Code).
				Wrap(err)
		}
		// NewStudent runs the full domain validation (code pattern,
		// name, future dates); the built record is discarded.
		if _, err := roster.NewStudent(s.Code, s.FullName, birthDate, s.Hometown, s.Parish, s.Diocese); err != nil {
			return oops.With("index", i).
				With("code", s.Code).
				Wrap(err)
		}

		if seen[s.Code] {
			return oops.Code("SEED_STUDENT_INVALID").
				With("index", i).
				With("code", s.Code).
				Errorf("duplicate student code")
		}
		seen[s.Code] = true
	}
	return nil
}
