// Package whisperx runs local WhisperX transcription through uvx.
//
// It is the offline alternative to the HTTP whisper provider: the
// transcription stage hands it one audio chunk at a time and receives
// sentence-level segments with timestamps relative to that chunk.
//
// Configuration options (model, CUDA, VAD method, language) are passed via Config.
package whisperx
