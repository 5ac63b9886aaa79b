package queue

import "errors"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("queue: not found")
	// ErrClaimLost is returned when an outcome or heartbeat write no longer
	// matches the claim token, meaning the job was reclaimed.
	ErrClaimLost = errors.New("queue: claim lost")
)
