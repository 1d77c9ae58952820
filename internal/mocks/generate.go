// Package mocks provides mock implementations for testing the auth system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. Hand-written doubles for the same ports live in
// internal/mocks/auth and cover most unit tests; the generated mocks are for
// tests that need strict call expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for RegistrationChecker interface from internal/ports.
// This creates MockRegistrationChecker with strict call expectations for the
// registration-check guard.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=registration_checker_mock.go github.com/civicloop/portal-auth/internal/ports RegistrationChecker

// Generate mock for KeyValue interface from internal/ports.
// This creates MockKeyValue for storage-failure tests.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=key_value_mock.go github.com/civicloop/portal-auth/internal/ports KeyValue
