// Package domain contains the core business entities and types for AgentGauge.
//
// This package defines:
//   - Entity types (Trace, Span, LogEntry, EvalTestCase, etc.)
//   - Value objects and enums
//   - Input/output types for service operations
//   - Domain-level validation rules
//
// # Design Philosophy
//
// Domain types are persistence-agnostic and represent the core
// business concepts independent of how they are stored or transmitted.
//
// # Key Entities
//
//   - Trace: A complete agent request, the root of the trace hierarchy
//   - Span: A single timed operation within a trace
//   - LogEntry: A structured log line correlated to a trace and span
//   - ToolCallRecord: One captured tool invocation inside an agent run
//   - EvalTestCase: A captured interaction promoted into a regression test
//   - EvalReport: The persisted outcome of a replay evaluation batch
//
// # Naming Conventions
//
// Types ending in "Input" are used for create/update operations.
// Types ending in "Filter" are used for query operations.
//
// Trace, span and log JSON uses camelCase field names. The evaluation and
// analyzer types keep the snake_case field names of the stored formats they
// are read from and written to.
package domain
