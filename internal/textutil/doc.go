// Package textutil provides small text helpers shared by the stages:
// timecode rendering, rune-safe truncation and filename sanitization.
package textutil
