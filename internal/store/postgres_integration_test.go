// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nguyendan07/seminary-management-system/internal/store"
)

// setupPostgresStore starts a PostgreSQL container, opens a store against
// it, and applies all migrations.
func setupPostgresStore() (*store.Store, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("seminary_test"),
		postgres.WithUsername("seminary"),
		postgres.WithPassword("seminary"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	if err := st.Migrate(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		st.Close()
		_ = container.Terminate(ctx)
	}

	return st, cleanup, nil
}

var _ = Describe("Store", func() {
	var st *store.Store
	var cleanup func()

	BeforeEach(func() {
		var err error
		st, cleanup, err = setupPostgresStore()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Ping", func() {
		It("succeeds against a migrated database", func() {
			ctx := context.Background()
			Expect(st.Ping(ctx)).To(Succeed())
		})
	})

	Describe("Migrate", func() {
		It("is idempotent", func() {
			Expect(st.Migrate()).To(Succeed())
		})
	})

	Describe("SystemInfo", func() {
		It("returns ErrKeyNotFound for a missing key", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())
			_, err := info.Get(ctx, "nonexistent")
			Expect(err).To(MatchError(store.ErrKeyNotFound))
		})

		It("sets and gets a value", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			err := info.Set(ctx, "test_key", "test_value")
			Expect(err).NotTo(HaveOccurred())

			value, err := info.Get(ctx, "test_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("test_value"))
		})

		It("updates an existing key", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			Expect(info.Set(ctx, "update_key", "original")).To(Succeed())
			Expect(info.Set(ctx, "update_key", "updated")).To(Succeed())

			value, err := info.Get(ctx, "update_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("updated"))
		})

		It("lists all entries", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			Expect(info.Set(ctx, "alpha", "1")).To(Succeed())
			Expect(info.Set(ctx, "beta", "2")).To(Succeed())

			all, err := info.All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveKeyWithValue("alpha", "1"))
			Expect(all).To(HaveKeyWithValue("beta", "2"))
		})
	})

	Describe("InstallID", func() {
		It("generates a new install id when none exists", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			installID, err := info.InstallID(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(installID).NotTo(BeEmpty())
			Expect(installID).To(HaveLen(26)) // Valid ULID length
		})

		It("returns the existing install id on subsequent calls", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			firstID, err := info.InstallID(ctx)
			Expect(err).NotTo(HaveOccurred())

			secondID, err := info.InstallID(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(secondID).To(Equal(firstID))
		})

		It("persists the install id in the database", func() {
			ctx := context.Background()
			info := store.NewPostgresSystemInfoRepository(st.Pool())

			installID, err := info.InstallID(ctx)
			Expect(err).NotTo(HaveOccurred())

			storedID, err := info.Get(ctx, store.InstallIDKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(storedID).To(Equal(installID))
		})
	})
})
