// Package audio wraps the ffmpeg invocations the pipeline needs: extracting a
// speech friendly mono track, splitting it into upload sized chunks and
// grabbing a single video frame.
//
// Commands run through an injectable Runner so handlers can be tested without
// ffmpeg installed. ChunkSeconds holds the chunk sizing arithmetic.
package audio
