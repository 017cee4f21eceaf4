// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Policy thresholds. The strength score uses a longer length criterion than
// the acceptance gate; the two are independent.
const (
	MinUsernameLength       = 3
	MinPasswordLength       = 6
	StrongPasswordMinLength = 8

	// PasswordSpecialChars is the set a password must draw at least one character from.
	PasswordSpecialChars = "@#$%^&+=!"
)

// Fields named in validation errors.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldRole     = "role"
)

// Strength is an advisory password strength rating.
type Strength int

// Strength ratings.
const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "Weak"
	case Medium:
		return "Medium"
	case Strong:
		return "Strong"
	default:
		return fmt.Sprintf("Strength(%d)", int(s))
	}
}

// ValidateUsername checks a username against the acceptance rules.
// Username requirements:
// - Not empty
// - At least MinUsernameLength characters
// - Only ASCII letters, digits, and underscore
func ValidateUsername(username string) error {
	if username == "" {
		return ValidationError(FieldUsername, "username cannot be empty")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return ValidationError(FieldUsername,
			fmt.Sprintf("username must be at least %d characters long", MinUsernameLength))
	}
	for _, r := range username {
		if !isASCIILetter(r) && !isASCIIDigit(r) && r != '_' {
			return ValidationError(FieldUsername,
				"username can only contain letters, numbers, and underscores")
		}
	}
	return nil
}

// ValidatePassword checks a password against the acceptance rules and reports
// only the first rule that fails.
func ValidatePassword(password string) error {
	c := classify(password)
	switch {
	case c.length < MinPasswordLength:
		return ValidationError(FieldPassword,
			fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	case !c.upper:
		return ValidationError(FieldPassword, "password must contain at least one uppercase letter")
	case !c.lower:
		return ValidationError(FieldPassword, "password must contain at least one lowercase letter")
	case !c.digit:
		return ValidationError(FieldPassword, "password must contain at least one number")
	case !c.special:
		return ValidationError(FieldPassword,
			fmt.Sprintf("password must contain at least one special character (%s)", PasswordSpecialChars))
	}
	return nil
}

// ScoreStrength rates a password by awarding one point for each of: length of
// at least StrongPasswordMinLength, an uppercase letter, a lowercase letter, a
// digit, a special character. 0-2 is Weak, 3-4 Medium, 5 Strong.
func ScoreStrength(password string) Strength {
	c := classify(password)
	score := 0
	for _, ok := range []bool{c.length >= StrongPasswordMinLength, c.upper, c.lower, c.digit, c.special} {
		if ok {
			score++
		}
	}
	switch {
	case score <= 2:
		return Weak
	case score <= 4:
		return Medium
	default:
		return Strong
	}
}

type charClasses struct {
	length                       int
	upper, lower, digit, special bool
}

func classify(s string) charClasses {
	c := charClasses{length: utf8.RuneCountInString(s)}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case isASCIIDigit(r):
			c.digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			c.special = true
		}
	}
	return c
}

func isASCIILetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// RolePolicy decides which role names may be assigned at registration.
type RolePolicy struct {
	defaultRole string
	globs       []glob.Glob
}

// NewRolePolicy compiles the allowed role patterns. An empty pattern list
// allows any role. The default role is applied when none is requested and
// must itself be allowed.
func NewRolePolicy(defaultRole string, patterns []string) (*RolePolicy, error) {
	if defaultRole == "" {
		return nil, oops.Code("ROLE_POLICY_INVALID").Errorf("default role is required")
	}
	p := &RolePolicy{defaultRole: defaultRole}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("ROLE_POLICY_INVALID").
				With("pattern", pattern).
				Wrap(err)
		}
		p.globs = append(p.globs, g)
	}
	if !p.allowed(defaultRole) {
		return nil, oops.Code("ROLE_POLICY_INVALID").
			With("default_role", defaultRole).
			Errorf("default role %q is not in the allowed roles", defaultRole)
	}
	return p, nil
}

// DefaultRolePolicy assigns "user" and accepts any role.
func DefaultRolePolicy() *RolePolicy {
	return &RolePolicy{defaultRole: "user"}
}

// Resolve returns the role to store for a requested role.
func (p *RolePolicy) Resolve(requested string) (string, error) {
	if requested == "" {
		return p.defaultRole, nil
	}
	if !p.allowed(requested) {
		return "", ValidationError(FieldRole, fmt.Sprintf("role %q is not allowed", requested))
	}
	return requested, nil
}

func (p *RolePolicy) allowed(role string) bool {
	if len(p.globs) == 0 {
		return true
	}
	for _, g := range p.globs {
		if g.Match(role) {
			return true
		}
	}
	return false
}
