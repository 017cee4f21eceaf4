// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/pkg/errutil"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		reason   string
	}{
		{"valid", "alice", ""},
		{"valid with digits and underscore", "user_01", ""},
		{"minimum length", "abc", ""},
		{"empty", "", "username cannot be empty"},
		{"too short", "ab", "username must be at least 3 characters long"},
		{"length checked before charset", "a!", "username must be at least 3 characters long"},
		{"hyphen", "bad-name", "username can only contain letters, numbers, and underscores"},
		{"space", "bad name", "username can only contain letters, numbers, and underscores"},
		{"non-ascii letter", "josé", "username can only contain letters, numbers, and underscores"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, auth.CodeValidation)
			field, reason, ok := auth.ValidationField(err)
			require.True(t, ok)
			assert.Equal(t, auth.FieldUsername, field)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidatePassword_FirstFailingRule(t *testing.T) {
	tests := []struct {
		name     string
		password string
		reason   string
	}{
		{"valid", "abcdef1A!", ""},
		{"exactly minimum length", "aB1@xy", ""},
		{"too short wins over everything", "a", "password must be at least 6 characters long"},
		{"missing upper", "abcdef1!", "password must contain at least one uppercase letter"},
		{"missing lower", "ABCDEF1!", "password must contain at least one lowercase letter"},
		{"missing digit", "Abcdefg!", "password must contain at least one number"},
		{"missing special", "Abcdefg1", "password must contain at least one special character (@#$%^&+=!)"},
		{"special outside the set does not count", "Abcdef1*", "password must contain at least one special character (@#$%^&+=!)"},
		{"upper and lower missing reports upper", "123456!", "password must contain at least one uppercase letter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrValidation)
			field, reason, ok := auth.ValidationField(err)
			require.True(t, ok)
			assert.Equal(t, auth.FieldPassword, field)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestScoreStrength(t *testing.T) {
	tests := []struct {
		password string
		want     auth.Strength
	}{
		{"", auth.Weak},
		{"abc", auth.Weak},
		{"abcdefgh", auth.Weak},
		{"Abcdef1", auth.Medium},
		{"Abcdefgh", auth.Medium},
		{"Abcdef1!", auth.Strong},
		{"aB1@xy", auth.Medium},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ScoreStrength(tt.password))
		})
	}
}

func TestScoreStrength_IndependentOfAcceptance(t *testing.T) {
	// Six characters satisfies the gate but not the strength length criterion.
	require.NoError(t, auth.ValidatePassword("aB1@xy"))
	assert.Equal(t, auth.Medium, auth.ScoreStrength("aB1@xy"))

	// Long but rejected by the gate.
	require.Error(t, auth.ValidatePassword("abcdefghij"))
	assert.Equal(t, auth.Weak, auth.ScoreStrength("abcdefghij"))
}

func TestStrength_String(t *testing.T) {
	assert.Equal(t, "Weak", auth.Weak.String())
	assert.Equal(t, "Medium", auth.Medium.String())
	assert.Equal(t, "Strong", auth.Strong.String())
	assert.Equal(t, "Strength(7)", auth.Strength(7).String())
}

func TestRolePolicy(t *testing.T) {
	policy, err := auth.NewRolePolicy("user", []string{"user", "admin", "analyst", "it_*"})
	require.NoError(t, err)

	t.Run("empty role resolves to default", func(t *testing.T) {
		role, err := policy.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "user", role)
	})

	t.Run("allowed roles pass through", func(t *testing.T) {
		for _, r := range []string{"admin", "analyst", "it_support"} {
			role, err := policy.Resolve(r)
			require.NoError(t, err)
			assert.Equal(t, r, role)
		}
	})

	t.Run("unknown role is a validation error", func(t *testing.T) {
		_, err := policy.Resolve("root")
		require.Error(t, err)
		field, _, ok := auth.ValidationField(err)
		require.True(t, ok)
		assert.Equal(t, auth.FieldRole, field)
	})

	t.Run("default policy accepts any role", func(t *testing.T) {
		role, err := auth.DefaultRolePolicy().Resolve("anything")
		require.NoError(t, err)
		assert.Equal(t, "anything", role)
	})
}

func TestNewRolePolicy_Invalid(t *testing.T) {
	_, err := auth.NewRolePolicy("", nil)
	require.Error(t, err)

	_, err = auth.NewRolePolicy("user", []string{"[unclosed"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ROLE_POLICY_INVALID")

	_, err = auth.NewRolePolicy("guest", []string{"user", "admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed roles")
}
