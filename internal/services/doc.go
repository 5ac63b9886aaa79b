// Package services defines shared utilities consumed by the stage handlers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, asset IDs, stage names, worker IDs,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a stable
//     classification into job last_error values and metric labels.
//
// Provider clients live in subpackages (llm, whisper, whisperx) and share the
// retry policy in services/retry.
package services
