// Package handler contains HTTP request handlers for AgentGauge.
//
// Handlers are the entry point for HTTP requests, responsible for:
//   - Request parsing and validation
//   - Authentication context extraction
//   - Calling appropriate services
//   - Response formatting
//   - Error response mapping
//
// # Route Organization
//
// Routes are organized by resource under /v1:
//   - /v1/traces - ingestion and trace queries (traces:write / traces:read)
//   - /v1/eval/* - test case capture and replay (evals:write / evals:read)
//   - /v1/analytics/* - trace analyzer aggregates (analytics:read)
//   - /v1/agent/run - traced agent runs (traces:write)
//   - /v1/otel/* - OTLP receiver (traces:write)
//   - /v1/api-keys - key management (admin only)
//   - /v1/auth/token - API key to session token exchange (no auth)
//   - /v1/events/stream - server-sent events (any authenticated caller)
//
// # Error Handling
//
// Handlers convert domain errors to appropriate HTTP status codes
// using the apperrors package for consistent error responses.
//
// # Thread Safety
//
// All handlers are safe for concurrent use.
package handler
