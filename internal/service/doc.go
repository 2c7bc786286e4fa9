// Package service contains the business logic between the HTTP handlers
// and the repositories.
//
// Services depend on repository interfaces declared in this package, so the
// storage backends stay swappable and tests can substitute mocks. The main
// services are:
//
//   - IngestionService: accepts trace batches, scrubs payloads, persists them
//   - QueryService: the trace read path (single traces, lists, detail views)
//   - AnalyticsService: failure, latency and volume aggregates plus health
//   - EvalService: capture/replay test-case lifecycle and eval reports
//   - RunService: traced execution of built-in agents
//   - AuthService: API-key issuance, verification and JWT session exchange
//   - RealtimeService: in-process pub/sub feeding the SSE stream
package service
