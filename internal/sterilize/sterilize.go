// Package sterilize normalises untrusted input. A value is well formed
// only when it survives its sterilizer unchanged; Accept encodes that rule.
package sterilize

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	MaxNameLen       = 64
	MaxEmailLen      = 254
	MaxPasswordBytes = 72 // bcrypt ignores anything longer
	CodeLen          = 8
	PublicNonceLen   = 64
)

var validate = validator.New()

// Accept reports whether raw is non-empty and identical to its sterilized form.
func Accept(raw, sterilized string) bool {
	return raw != "" && raw == sterilized
}

// Name keeps ASCII letters, digits, '.', '_' and '-', capped at MaxNameLen.
func Name(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		}
		return -1
	}, strings.TrimSpace(raw))
	if len(s) > MaxNameLen {
		s = s[:MaxNameLen]
	}
	return s
}

// Email lower-cases and trims the address. Anything that is not a plain
// address, or that a cookie could not carry verbatim, becomes "".
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.ContainsAny(s, "\"';,\\ ") {
		return ""
	}
	if err := validate.Var(s, "required,email,max=254"); err != nil {
		return ""
	}
	for _, r := range s {
		if r >= unicode.MaxASCII {
			return ""
		}
	}
	return s
}

// Password drops control characters and caps the length at MaxPasswordBytes.
func Password(raw string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	if len(s) > MaxPasswordBytes {
		s = s[:MaxPasswordBytes]
	}
	return s
}

// Code keeps digits and requires exactly CodeLen of them.
func Code(raw string) string {
	s := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.TrimSpace(raw))
	if err := validate.Var(s, "required,numeric,len=8"); err != nil {
		return ""
	}
	return s
}

// PublicNonce requires a lower-case hex SHA-256 digest.
func PublicNonce(raw string) string {
	s := strings.TrimSpace(raw)
	if s != strings.ToLower(s) {
		return ""
	}
	if err := validate.Var(s, "required,hexadecimal,len=64"); err != nil {
		return ""
	}
	return s
}
