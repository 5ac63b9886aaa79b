// Package deps resolves the external binaries the worker shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the worker shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports where a requirement resolved, or why it did not.
type Status struct {
	Requirement
	Path   string
	Detail string
}

// Available reports whether the binary was found.
func (s Status) Available() bool { return s.Path != "" }

// LookPath resolves a command name. Tests replace it to avoid touching PATH.
var LookPath = exec.LookPath

// Resolve looks up one requirement.
func Resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := LookPath(req.Command)
	switch {
	case errors.Is(err, exec.ErrNotFound):
		status.Detail = fmt.Sprintf("binary %q not found on PATH", req.Command)
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q unusable: %v", req.Command, err)
	default:
		status.Path = path
	}
	return status
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Resolve(req))
	}
	return results
}
