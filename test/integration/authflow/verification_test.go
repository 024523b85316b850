// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

//go:build integration

package authflow_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	authpostgres "github.com/nguyendan07/seminary-management-system/internal/auth/postgres"
	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

var _ = Describe("Credential verification over PostgreSQL", func() {
	var svc *auth.Service

	newService := func(cfg auth.ServiceConfig) *auth.Service {
		s, err := auth.NewService(
			authpostgres.NewAccountRepository(env.pool),
			authpostgres.NewSessionRepository(env.pool),
			auth.NewArgon2idHasher(),
			cfg,
		)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		env.truncateAll()
		svc = newService(auth.ServiceConfig{
			Lockout: auth.LockoutPolicy{
				Threshold:    3,
				Window:       time.Minute,
				LockDuration: time.Minute,
			},
		})

		_, err := svc.Register(env.ctx, "admin@seminary.edu", "admin123", "Administrator", auth.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Verify", func() {
		It("issues a session for correct credentials", func() {
			session, token, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())
			Expect(session.Identity).To(Equal("admin@seminary.edu"))
			Expect(session.ExpiresAt).To(BeTemporally(">", time.Now()))

			Expect(svc.IsValid(env.ctx, token)).To(BeTrue())
		})

		It("refuses a wrong secret and an unknown identity identically", func() {
			_, _, err := svc.Verify(env.ctx, "admin@seminary.edu", "wrong", "suite", "127.0.0.1")
			Expect(errutil.ErrorCode(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))

			_, _, err = svc.Verify(env.ctx, "ghost@seminary.edu", "whatever", "suite", "127.0.0.1")
			Expect(errutil.ErrorCode(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
		})

		It("locks the account after the failure threshold", func() {
			for range 3 {
				_, _, err := svc.Verify(env.ctx, "admin@seminary.edu", "wrong", "suite", "127.0.0.1")
				Expect(errutil.ErrorCode(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
			}

			_, _, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(errutil.ErrorCode(err)).To(Equal("AUTH_ACCOUNT_LOCKED"))
		})

		It("clears the lockout on unlock", func() {
			for range 3 {
				_, _, _ = svc.Verify(env.ctx, "admin@seminary.edu", "wrong", "suite", "127.0.0.1")
			}
			_, _, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(errutil.ErrorCode(err)).To(Equal("AUTH_ACCOUNT_LOCKED"))

			Expect(svc.Unlock(env.ctx, "admin@seminary.edu")).To(Succeed())

			_, token, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())
		})

		It("counts concurrent failures exactly", func() {
			const attempts = 10

			// High threshold so no goroutine hits the lockout path and
			// every failure must land on the counter.
			roomy := newService(auth.ServiceConfig{
				Lockout: auth.LockoutPolicy{
					Threshold:    100,
					Window:       time.Minute,
					LockDuration: time.Minute,
				},
			})

			var wg sync.WaitGroup
			wg.Add(attempts)
			for range attempts {
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, _, err := roomy.Verify(env.ctx, "admin@seminary.edu", "wrong", "suite", "127.0.0.1")
					Expect(err).To(HaveOccurred())
				}()
			}
			wg.Wait()

			var failedAttempts int
			err := env.pool.QueryRow(env.ctx,
				`SELECT failed_attempts FROM accounts WHERE identity = $1`,
				"admin@seminary.edu").Scan(&failedAttempts)
			Expect(err).NotTo(HaveOccurred())
			Expect(failedAttempts).To(Equal(attempts), "every failure is counted, none lost to races")
		})
	})

	Describe("Revoke", func() {
		It("invalidates the session", func() {
			_, token, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.IsValid(env.ctx, token)).To(BeTrue())

			Expect(svc.Revoke(env.ctx, token)).To(Succeed())
			Expect(svc.IsValid(env.ctx, token)).To(BeFalse())
		})

		It("is idempotent for unknown tokens", func() {
			Expect(svc.Revoke(env.ctx, "never-issued")).To(Succeed())
		})
	})

	Describe("SweepExpired", func() {
		It("removes only expired sessions", func() {
			shortLived := newService(auth.ServiceConfig{
				SessionTTL: time.Millisecond,
				Lockout: auth.LockoutPolicy{
					Threshold:    3,
					Window:       time.Minute,
					LockDuration: time.Minute,
				},
			})

			_, expired, err := shortLived.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			_, live, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(10 * time.Millisecond)

			removed, err := svc.SweepExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeNumerically(">=", 1))

			Expect(svc.IsValid(env.ctx, expired)).To(BeFalse())
			Expect(svc.IsValid(env.ctx, live)).To(BeTrue())
		})
	})

	Describe("Secret reset", func() {
		It("rotates the secret and revokes existing sessions", func() {
			resets, err := auth.NewResetService(
				authpostgres.NewAccountRepository(env.pool),
				authpostgres.NewResetRepository(env.pool),
				authpostgres.NewSessionRepository(env.pool),
				auth.NewArgon2idHasher(),
			)
			Expect(err).NotTo(HaveOccurred())

			_, oldToken, err := svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			resetToken, err := resets.RequestReset(env.ctx, "admin@seminary.edu")
			Expect(err).NotTo(HaveOccurred())
			Expect(resetToken).NotTo(BeEmpty())

			Expect(resets.ResetSecret(env.ctx, resetToken, "brandnew99")).To(Succeed())

			Expect(svc.IsValid(env.ctx, oldToken)).To(BeFalse(), "old sessions die with the old secret")

			_, _, err = svc.Verify(env.ctx, "admin@seminary.edu", "admin123", "suite", "127.0.0.1")
			Expect(errutil.ErrorCode(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))

			_, token, err := svc.Verify(env.ctx, "admin@seminary.edu", "brandnew99", "suite", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())
		})
	})
})
