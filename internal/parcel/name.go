package parcel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned when a string is not a valid parcel name.
var ErrInvalidName = errors.New("invalid parcel name")

// CountSuffix is appended to a family base to name its companion count.
const CountSuffix = "_count"

// Name identifies a parcel: a base name, optionally paired with an index.
type Name struct {
	Base    string
	Index   int
	Indexed bool
}

// Bare returns the un-indexed name for base.
func Bare(base string) Name {
	return Name{Base: norm.NFC.String(base)}
}

// At returns the indexed name base[i].
func At(base string, i int) Name {
	return Name{Base: norm.NFC.String(base), Index: i, Indexed: true}
}

// CountName returns the companion count name for a family base.
//
//	CountName("user") == "user_count"
func CountName(base string) string {
	return base + CountSuffix
}

// IsCountName reports whether s follows the companion count convention.
func IsCountName(s string) bool {
	return len(s) > len(CountSuffix) && strings.HasSuffix(s, CountSuffix)
}

// String formats the name as "base" or "base[i]".
func (n Name) String() string {
	if !n.Indexed {
		return n.Base
	}
	return n.Base + "[" + strconv.Itoa(n.Index) + "]"
}

// ParseName parses "base" or "base[i]".
//
// The base must be non-empty and contain no brackets or whitespace. The index
// must be a non-negative decimal integer without sign or leading zeros.
func ParseName(s string) (Name, error) {
	s = norm.NFC.String(s)

	open := strings.IndexByte(s, '[')
	if open < 0 {
		if err := validateBase(s); err != nil {
			return Name{}, fmt.Errorf("%w %q: %v", ErrInvalidName, s, err)
		}
		return Name{Base: s}, nil
	}

	if !strings.HasSuffix(s, "]") {
		return Name{}, fmt.Errorf("%w %q: unterminated index", ErrInvalidName, s)
	}

	base := s[:open]
	if err := validateBase(base); err != nil {
		return Name{}, fmt.Errorf("%w %q: %v", ErrInvalidName, s, err)
	}

	idx, err := parseIndex(s[open+1 : len(s)-1])
	if err != nil {
		return Name{}, fmt.Errorf("%w %q: %v", ErrInvalidName, s, err)
	}

	return Name{Base: base, Index: idx, Indexed: true}, nil
}

// MustParseName is ParseName that panics on error. For literals in tests and
// node definitions.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// IsBase reports whether s is a valid bare base name.
func IsBase(s string) bool {
	return validateBase(norm.NFC.String(s)) == nil
}

func validateBase(base string) error {
	if base == "" {
		return errors.New("empty base name")
	}
	for _, r := range base {
		switch {
		case r == '[' || r == ']':
			return errors.New("base name contains a bracket")
		case unicode.IsSpace(r):
			return errors.New("base name contains whitespace")
		}
	}
	return nil
}

func parseIndex(digits string) (int, error) {
	if digits == "" {
		return 0, errors.New("empty index")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("index %q is not a non-negative integer", digits)
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, fmt.Errorf("index %q has leading zeros", digits)
	}
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("index %q: %w", digits, err)
	}
	return idx, nil
}
