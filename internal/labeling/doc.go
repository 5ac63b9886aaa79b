// Package labeling implements the label generation stage. It renders the
// asset's transcript as timestamped lines, asks a chat model for a JSON array
// of scene and topic labels, normalizes the answer and replaces the asset's
// labels with it.
package labeling
