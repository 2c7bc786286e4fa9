// Package repository contains data access implementations for AgentGauge.
//
// Repositories provide persistence operations for domain entities,
// abstracting the underlying data stores (PostgreSQL, ClickHouse, Redis).
//
// # Architecture
//
// Repository interfaces are defined at the service layer (consumer-defined
// interfaces) following Go's dependency inversion best practices.
// This package contains the concrete implementations.
//
// # Data Stores
//
// The system uses multiple specialized data stores:
//   - PostgreSQL: Transactional data (API keys, eval test cases, reports)
//   - ClickHouse: Analytics and time-series data (traces, spans, logs)
//   - Redis: Caching and rate limiting
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use.
// Connection pools are managed at the database layer.
package repository
