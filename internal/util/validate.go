package util

import (
	"fmt"
	"regexp"
	"strings"
)

// validLabelChars matches only alphanumeric characters, hyphens, and underscores.
var validLabelChars = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// ValidateLabel checks that a Linode label conforms to the API's rules:
//   - Between 3 and 32 characters
//   - Only alphanumeric characters (a-z, A-Z, 0-9), hyphens (-), and underscores (_)
//   - First character must be a letter
//   - Last character must be alphanumeric
func ValidateLabel(label string) error {
	if len(label) < 3 || len(label) > 32 {
		return fmt.Errorf("label must be 3 to 32 characters, got %d", len(label))
	}

	if !validLabelChars.MatchString(label) {
		return fmt.Errorf("label %q contains invalid characters (only a-z, A-Z, 0-9, hyphens, and underscores are allowed)", label)
	}

	first := label[0]
	if !isLetter(first) {
		return fmt.Errorf("label must start with a letter, got %q", string(first))
	}

	last := label[len(label)-1]
	if !isLetter(last) && !isDigit(last) {
		return fmt.Errorf("label must end with a letter or digit, got %q", string(last))
	}

	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// ValidateDiskLabel checks a disk label: 1 to 50 characters, not blank.
// Unlike Linode labels, spaces are allowed.
func ValidateDiskLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("disk label cannot be blank")
	}
	if len(label) > 50 {
		return fmt.Errorf("disk label must be at most 50 characters, got %d", len(label))
	}
	return nil
}
