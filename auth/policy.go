package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

// MinMasterPasswordLength is the shortest master password the policy accepts.
const MinMasterPasswordLength = 12

var (
	// ErrWeakPassword is returned when a password fails the master password policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrBreachedPassword is returned when HIBP reports the password as exposed.
	ErrBreachedPassword = errors.New("password appears in a known breach")
)

// ValidateMasterPassword applies the master password policy requirements.
func ValidateMasterPassword(pw string) error {
	if len(pw) < MinMasterPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, MinMasterPasswordLength)
	}
	if !hasUpper(pw) {
		return fmt.Errorf("%w: must include an uppercase letter", ErrWeakPassword)
	}
	if !hasDigit(pw) {
		return fmt.Errorf("%w: must include a digit", ErrWeakPassword)
	}
	if !hasSpecial(pw) {
		return fmt.Errorf("%w: must include a special character", ErrWeakPassword)
	}
	return nil
}

// ValidateOptions tunes ValidateMasterPasswordAdvanced.
type ValidateOptions struct {
	// MinZXCVBNScore is the lowest acceptable zxcvbn score (0-4). Zero disables the check.
	MinZXCVBNScore int
	// EnableHIBP turns on the breach lookup.
	EnableHIBP bool
	// FailOpen accepts the password when the breach lookup itself fails.
	FailOpen bool
	// UserInputs are penalised by zxcvbn (usernames, site names).
	UserInputs []string
	HIBP       *HIBPClient
}

// DefaultValidateOptions requires a zxcvbn score of 3 and leaves HIBP disabled.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MinZXCVBNScore: 3,
		FailOpen:       true,
	}
}

// ValidateMasterPasswordAdvanced runs the static policy, then the zxcvbn score
// check and, when enabled, the HIBP lookup.
func ValidateMasterPasswordAdvanced(ctx context.Context, pw string, opts ValidateOptions) error {
	if err := ValidateMasterPassword(pw); err != nil {
		return err
	}

	if opts.MinZXCVBNScore > 0 {
		report := Strength(pw, opts.UserInputs...)
		if report.Score < opts.MinZXCVBNScore {
			return fmt.Errorf("%w: strength score %d is below %d (crack time %s)",
				ErrWeakPassword, report.Score, opts.MinZXCVBNScore, report.CrackTime)
		}
	}

	if !opts.EnableHIBP {
		return nil
	}
	client := opts.HIBP
	if client == nil {
		client = NewHIBPClient()
	}
	res, err := client.Check(ctx, pw)
	if err != nil {
		if opts.FailOpen {
			return nil
		}
		return err
	}
	if res.Found {
		return fmt.Errorf("%w (seen %d times)", ErrBreachedPassword, res.Count)
	}
	return nil
}

func hasUpper(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func hasSpecial(s string) bool {
	return strings.ContainsAny(s, specialChars)
}
