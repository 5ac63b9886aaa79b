// Package language normalizes the transcription language hint to the
// ISO 639-1 code the speech-to-text providers expect, and renders codes as
// English display names for operator output.
package language
