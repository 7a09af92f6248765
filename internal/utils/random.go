package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomDigits returns n decimal digits, leading zeros kept.
func RandomDigits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random digits: length must be positive")
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	s := v.String()
	return strings.Repeat("0", n-len(s)) + s, nil
}

// RandomAlphanumeric returns n characters from [A-Za-z0-9], uniformly.
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random string: length must be positive")
	}
	max := big.NewInt(int64(len(alphanumeric)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[v.Int64()]
	}
	return string(b), nil
}
