package flags

import "fmt"

// ValidName verifies that a unit, section, flag, or tag name matches the
// identifier grammar and returns its normalized form (uppercase letters are
// folded to lowercase).
//
// A valid name is composed of letters (a-z, A-Z), digits (0-9), and dashes
// (-) only. It cannot be empty, cannot start with a digit or a dash, cannot
// contain two dashes in a row, and cannot end with a dash. The underscore is
// excluded on purpose: it is the separator used when building the flag
// filename from the unit, section, and name.
func ValidName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: unit, section, name, and tags cannot be empty", ErrInvalidName)
	}

	b := []byte(name)
	var last byte
	for i, c := range b {
		switch {
		case c == '-':
			if i == 0 {
				return "", fmt.Errorf("%w: %q cannot start with a dash (-)", ErrInvalidName, name)
			}
			if last == '-' {
				return "", fmt.Errorf("%w: %q cannot have two dashes (--) in a row", ErrInvalidName, name)
			}

		case c >= '0' && c <= '9':
			if i == 0 {
				return "", fmt.Errorf("%w: %q cannot start with a digit", ErrInvalidName, name)
			}

		case c >= 'A' && c <= 'Z':
			c |= 0x20
			b[i] = c

		case c >= 'a' && c <= 'z':
			// fine as is

		default:
			return "", fmt.Errorf("%w: %q cannot include characters other than a-z, 0-9, and dashes (-)", ErrInvalidName, name)
		}
		last = c
	}

	if last == '-' {
		return "", fmt.Errorf("%w: %q cannot end with a dash (-)", ErrInvalidName, name)
	}

	return string(b), nil
}
