// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package seed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyendan07/seminary-management-system/internal/seed"
	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := seed.GenerateSchema()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, seed.SchemaID)
	assert.Contains(t, text, `"version"`)
	assert.Contains(t, text, `"accounts"`)
	assert.Contains(t, text, `"students"`)
	assert.Contains(t, text, `"birth_date"`)
	assert.Contains(t, text, `"display_name"`)
}

func TestValidateSchema_DefaultManifest(t *testing.T) {
	seed.ResetSchemaCache()
	require.NoError(t, seed.ValidateSchema(seed.Default()))
}

func TestValidateSchema_MinimalManifest(t *testing.T) {
	// Accounts and students are optional at the schema layer.
	require.NoError(t, seed.ValidateSchema([]byte(`version: "1.0.0"`)))
}

func TestValidateSchema_EmptyData(t *testing.T) {
	err := seed.ValidateSchema(nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SEED_MANIFEST_INVALID")
}

func TestValidateSchema_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing version",
			yaml: `accounts: []`,
		},
		{
			name: "version wrong type",
			yaml: `version: [1, 0, 0]`,
		},
		{
			name: "accounts wrong type",
			yaml: "version: \"1.0.0\"\naccounts: not-a-list",
		},
		{
			name: "unknown top-level key",
			yaml: "version: \"1.0.0\"\ncourses: []",
		},
		{
			name: "account missing secret",
			yaml: `
version: "1.0.0"
accounts:
  - identity: rector@seminary.edu
`,
		},
		{
			name: "student missing birth date",
			yaml: `
version: "1.0.0"
students:
  - code: SV001
    full_name: Nguyen Van An
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := seed.ValidateSchema([]byte(tt.yaml))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "SEED_MANIFEST_INVALID")
		})
	}
}
