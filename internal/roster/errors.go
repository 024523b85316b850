// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package roster

import "errors"

// ErrNotFound is returned when a requested student does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a create collides with an existing
// student, such as a taken code.
var ErrDuplicate = errors.New("already exists")
