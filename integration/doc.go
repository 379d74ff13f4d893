//go:build integration

// Package integration contains end-to-end tests that run the service
// against real storage servers started with testcontainers.
//
// These tests require Docker. Run with:
//
//	go test -tags=integration ./integration/...
//
// Set SKIP_DOCKER_TESTS=1 to skip them.
package integration
