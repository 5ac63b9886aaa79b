// Package transcription implements the transcription stage: fetch the
// uploaded media, extract a speech track, split it under the provider's
// upload limit, transcribe the chunks in order and persist timed segments.
//
// Each run replaces whatever transcript the asset already had, so a retried
// job never duplicates segments. The per-run work directory is removed on
// every exit path.
package transcription
