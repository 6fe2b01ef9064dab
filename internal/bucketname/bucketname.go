// Package bucketname validates candidate Cloud Storage bucket names against
// Google's naming requirements before any remote call is made. Validation is
// pure: no I/O, no state, deterministic error messages.
package bucketname

import (
	"regexp"
	"strings"
)

const (
	minLength = 3
	maxLength = 63
)

var (
	edgeChar = regexp.MustCompile(`^[a-z0-9]$`)
	charset  = regexp.MustCompile(`^[a-z0-9._-]+$`)

	// ipShaped matches any four dot-separated groups of 1-3 digits. Names of
	// this shape are rejected outright, even when a group exceeds 255.
	ipShaped = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// Validate reports whether name is an acceptable bucket name. When it is not,
// the returned reason describes the first rule violated. Checks run in a fixed
// order so the same bad name always yields the same reason.
func Validate(name string) (bool, string) {
	if name == "" {
		return false, "bucket name cannot be empty"
	}
	if len(name) < minLength {
		return false, "bucket name must be at least 3 characters"
	}
	if len(name) > maxLength {
		return false, "bucket name cannot exceed 63 characters"
	}
	if !edgeChar.MatchString(name[:1]) {
		return false, "bucket name must start with a lowercase letter or number"
	}
	if !edgeChar.MatchString(name[len(name)-1:]) {
		return false, "bucket name must end with a lowercase letter or number"
	}
	if !charset.MatchString(name) {
		return false, "bucket name can only contain lowercase letters, numbers, hyphens, underscores, and dots"
	}
	if strings.Contains(name, "..") {
		return false, "bucket name cannot contain consecutive dots"
	}
	if ipShaped.MatchString(name) {
		return false, "bucket name cannot be an IP address"
	}
	return true, ""
}
