// Package main hosts the cubby operator CLI.
//
// Commands open the job store directly, so they work whether or not a
// cubbyd worker is running. `status` is the exception: it reads the worker's
// HTTP surface and falls back to the instance lock when that is disabled.
package main
