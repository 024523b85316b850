// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a create collides with an existing
// entity, such as a taken identity.
var ErrDuplicate = errors.New("already exists")
