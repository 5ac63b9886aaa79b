// Package ffprobe asks ffprobe for a file's duration.
//
// Inspect takes a Runner so callers and tests can avoid spawning processes.
package ffprobe
