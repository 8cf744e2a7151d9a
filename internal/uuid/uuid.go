// Package uuid generates the identifiers used for queue items and storage objects.
package uuid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewLocalID returns a client idempotency key of the form
// "<unixMillis>_<uuidv4>". The millisecond prefix keeps ids roughly
// ordered by creation; the UUID suffix makes collisions negligible.
func NewLocalID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + New()
}

// ParseLocalID splits a local id into its timestamp and suffix.
func ParseLocalID(id string) (time.Time, string, error) {
	ts, suffix, ok := strings.Cut(id, "_")
	if !ok || suffix == "" {
		return time.Time{}, "", fmt.Errorf("invalid local id: %q", id)
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid local id timestamp: %w", err)
	}
	return time.UnixMilli(ms), suffix, nil
}

// NewFromString creates a UUID from a string.
// Returns an error if the string is not a valid UUID v4.
func NewFromString(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	if id.Version() != 4 {
		return uuid.Nil, fmt.Errorf("expected UUID v4, got v%d", id.Version())
	}
	return id, nil
}

// IsValid checks if a string is a valid UUID v4.
// Enforces strict format with dashes and correct variant bits.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
