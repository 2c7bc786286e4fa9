// Package errors provides application error types for AgentGauge.
//
// This package defines:
//   - AppError type with error classification
//   - Error constructors for common error types
//   - Error type checking helpers
//   - HTTP status code mapping
//
// # Error Types
//
//   - NotFound: Resource does not exist (404)
//   - Validation: Invalid input data (400)
//   - Unauthorized: Authentication required (401)
//   - ReplayMissing: Replay lookup found no recorded call (422)
//   - ToolInvocation: Live tool call failed downstream (502)
//   - Internal: Unexpected server error (500)
//
// # Usage
//
// Create errors using constructor functions:
//
//	return apperrors.ReplayMissing(toolID)
//	return apperrors.Validation("threshold must be between 0 and 1")
//
// Check error types:
//
//	if apperrors.IsReplayMissing(err) {
//	    // Hard case failure, never retried
//	}
//
// # Error Wrapping
//
// Errors support wrapping with fmt.Errorf:
//
//	return fmt.Errorf("capture failed: %w", apperrors.ToolInvocation(name, err))
package errors
