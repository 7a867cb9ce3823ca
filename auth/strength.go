package auth

import (
	"github.com/nbutton23/zxcvbn-go"
)

// StrengthReport summarises a zxcvbn estimate.
type StrengthReport struct {
	Score            int // 0 (guessable) to 4 (very unguessable)
	Entropy          float64
	CrackTimeSeconds float64
	CrackTime        string
}

// Strength estimates how hard pw is to guess. userInputs (usernames, site names)
// are treated as dictionary words.
func Strength(pw string, userInputs ...string) StrengthReport {
	m := zxcvbn.PasswordStrength(pw, userInputs)
	return StrengthReport{
		Score:            m.Score,
		Entropy:          m.Entropy,
		CrackTimeSeconds: m.CrackTime,
		CrackTime:        m.CrackTimeDisplay,
	}
}

// Label maps a score to a short word for display.
func (r StrengthReport) Label() string {
	switch r.Score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "strong"
	default:
		return "very strong"
	}
}
