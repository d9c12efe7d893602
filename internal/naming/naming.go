// Package naming holds the preview environment naming convention.
// Stack names are produced and parsed only here.
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix starts every preview environment object name.
const Prefix = "ephemeral-pr-"

// ErrInvalidPRNumber is returned for PR numbers that are not positive.
var ErrInvalidPRNumber = errors.New("invalid PR number")

var prPattern = regexp.MustCompile(`ephemeral-pr-(\d+)`)

var defaultNetworks = map[string]bool{
	"bridge": true,
	"host":   true,
	"none":   true,
}

// ValidPRNumber reports whether n can own a preview environment.
func ValidPRNumber(n int) bool {
	return n > 0
}

// StackName returns the environment name for PR n.
func StackName(n int) (string, error) {
	if !ValidPRNumber(n) {
		return "", fmt.Errorf("%w: %d", ErrInvalidPRNumber, n)
	}
	return Prefix + strconv.Itoa(n), nil
}

// ParsePRNumber parses a PR number given on the command line.
func ParsePRNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPRNumber, s)
	}
	if !ValidPRNumber(n) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPRNumber, n)
	}
	return n, nil
}

// ExtractPRNumber returns the PR encoded in name. The first match anywhere in
// the name wins; zero and out-of-range digit runs are not PR numbers.
func ExtractPRNumber(name string) (int, bool) {
	m := prPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || !ValidPRNumber(n) {
		return 0, false
	}
	return n, true
}

// OwnedBy reports whether name belongs to PR n exactly.
func OwnedBy(name string, n int) bool {
	got, ok := ExtractPRNumber(name)
	return ok && got == n
}

// IsDefaultNetwork reports whether name is a runtime-provided network
// that must never be reported or removed.
func IsDefaultNetwork(name string) bool {
	return defaultNetworks[name]
}
