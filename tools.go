// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

//go:build tools

// Package main keeps test-only dependencies that appear solely behind the
// integration build tag pinned in go.mod.
package main

import (
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
