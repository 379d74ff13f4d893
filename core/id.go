package core

import "fmt"

// ID is a truncated lowercase-hex content digest.
type ID string

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// ParseID validates s as an identifier of exactly length characters drawn
// from 0-9a-f.
func ParseID(s string, length int) (ID, error) {
	if len(s) != length {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidID, s, len(s), length)
	}
	for i := 0; i < len(s); i++ {
		if !isLowerHex(s[i]) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidID, s, s[i])
		}
	}
	return ID(s), nil
}

func isLowerHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}
