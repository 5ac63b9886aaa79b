// Package preflight verifies the worker's environment before it claims work:
// required binaries on PATH, a writable work directory with enough free
// space, and API keys for the configured providers. Remote checks against
// the chat model, the transcription endpoint and the media store are
// available for `cubby doctor`.
package preflight
