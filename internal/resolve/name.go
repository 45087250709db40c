package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned for empty names and names containing
// characters outside the allowed alphabet.
var ErrInvalidName = errors.New("invalid name")

// NameError reports the first disallowed character of a name.
type NameError struct {
	Name string
	Rune rune
}

func (e *NameError) Error() string {
	if e.Rune == 0 {
		return "invalid name: empty"
	}
	return fmt.Sprintf("invalid name %q: character %q is not allowed", e.Name, e.Rune)
}

func (e *NameError) Unwrap() error {
	return ErrInvalidName
}

// allowedRune accepts space, '-', ASCII letters and digits and the basic
// Cyrillic alphabet without ё/Ё.
func allowedRune(r rune) bool {
	switch {
	case r == ' ', r == '-':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я':
		return true
	}
	return false
}

// ValidateName checks a team or task name after trimming surrounding
// whitespace. The returned error is a *NameError wrapping ErrInvalidName.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &NameError{Name: name}
	}
	for _, r := range trimmed {
		if !allowedRune(r) {
			return &NameError{Name: trimmed, Rune: r}
		}
	}
	return nil
}

// ValidName reports whether ValidateName accepts name.
func ValidName(name string) bool {
	return ValidateName(name) == nil
}
