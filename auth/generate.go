package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()_-+=<>?"
)

// Bounds accepted by GeneratePassword.
const (
	MinGeneratedLength = 4
	MaxGeneratedLength = 1024
)

// ErrInvalidLength is returned when a generated password length is out of range.
var ErrInvalidLength = errors.New("invalid password length")

// GeneratePassword returns a random password drawn from letters and digits,
// plus symbols when useSymbols is set. Every enabled class appears at least once.
func GeneratePassword(length int, useSymbols bool) (string, error) {
	if length < MinGeneratedLength || length > MaxGeneratedLength {
		return "", fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidLength, length, MinGeneratedLength, MaxGeneratedLength)
	}

	classes := []string{lowerChars, upperChars, digitChars}
	if useSymbols {
		classes = append(classes, symbolChars)
	}
	alphabet := ""
	for _, c := range classes {
		alphabet += c
	}

	out := make([]byte, length)
	for i, c := range classes {
		ch, err := pick(c)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}
	for i := len(classes); i < length; i++ {
		ch, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}

	// Fisher-Yates so the guaranteed characters are not always up front.
	for i := length - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}
