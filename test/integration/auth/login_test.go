// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

//go:build integration

package auth_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/mdip/authd/internal/auth"
)

var _ = Describe("Register and login on PostgreSQL", func() {
	var (
		now time.Time
		svc *auth.Service
	)

	BeforeEach(func() {
		env.truncate()
		now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		svc = newService(&now)
	})

	Describe("registration", func() {
		It("stores the credential with the default role", func() {
			Expect(svc.Register(env.ctx, "alice", "Secret1!", "")).To(Succeed())

			rec, err := env.Credentials.Lookup(env.ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Role).To(Equal("user"))
			Expect(rec.PasswordHash).NotTo(ContainSubstring("Secret1!"))
		})

		It("rejects a duplicate username", func() {
			Expect(svc.Register(env.ctx, "alice", "Secret1!", "")).To(Succeed())
			err := svc.Register(env.ctx, "alice", "Other1!x", "admin")
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})

		It("admits exactly one of many concurrent registrations", func() {
			const n = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := svc.Register(env.ctx, "racer", "Secret1!", "")
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
						return
					}
					Expect(err).To(MatchError(auth.ErrAlreadyExists))
				}()
			}
			wg.Wait()
			Expect(succeeded).To(Equal(1))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			Expect(svc.Register(env.ctx, "bob", "Secret1!", "analyst")).To(Succeed())
		})

		It("issues a session token that supersedes the previous one", func() {
			first, err := svc.Login(env.ctx, "bob", "Secret1!")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Role).To(Equal("analyst"))

			now = now.Add(time.Minute)
			second, err := svc.Login(env.ctx, "bob", "Secret1!")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Token).NotTo(Equal(first.Token))

			current, err := svc.Sessions().Current(env.ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Token).To(Equal(second.Token))
			Expect(current.IssuedAt.Equal(now)).To(BeTrue())
		})

		It("reports unknown users distinctly from wrong passwords", func() {
			_, err := svc.Login(env.ctx, "nobody", "Secret1!")
			Expect(err).To(MatchError(auth.ErrUserNotFound))

			_, err = svc.Login(env.ctx, "bob", "wrong")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			remaining, ok := auth.AttemptsRemaining(err)
			Expect(ok).To(BeTrue())
			Expect(remaining).To(Equal(2))
		})

		It("locks after three failures and unlocks when the window passes", func() {
			for range 3 {
				_, err := svc.Login(env.ctx, "bob", "wrong")
				Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			}

			now = now.Add(100 * time.Second)
			_, err := svc.Login(env.ctx, "bob", "Secret1!")
			Expect(err).To(MatchError(auth.ErrAccountLocked))
			retryAfter, ok := auth.RetryAfter(err)
			Expect(ok).To(BeTrue())
			Expect(retryAfter).To(Equal(200 * time.Second))

			now = now.Add(200 * time.Second)
			result, err := svc.Login(env.ctx, "bob", "Secret1!")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Username).To(Equal("bob"))
		})

		It("does not lose concurrent failures", func() {
			tracker, err := auth.NewLockoutTracker(env.Lockouts, auth.LockoutPolicy{Threshold: 1000, Window: time.Hour})
			Expect(err).NotTo(HaveOccurred())

			const n = 20
			var wg sync.WaitGroup
			for range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, recErr := tracker.RecordFailure(env.ctx, "bob", now)
					Expect(recErr).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			count, err := tracker.RecordFailure(env.ctx, "bob", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(n + 1))
		})

		It("resets the failure count on success", func() {
			for range 2 {
				_, err := svc.Login(env.ctx, "bob", "wrong")
				Expect(err).To(HaveOccurred())
			}
			_, err := svc.Login(env.ctx, "bob", "Secret1!")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Login(env.ctx, "bob", "wrong")
			remaining, _ := auth.AttemptsRemaining(err)
			Expect(remaining).To(Equal(2))
		})
	})
})
