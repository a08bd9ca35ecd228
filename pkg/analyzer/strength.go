// Package analyzer provides password strength heuristics and vault-wide
// security analysis.
//
// The scoring function is a fixed rubric: length brackets, character
// class coverage, a uniqueness ratio, and penalties for dictionary
// membership, keyboard-adjacency runs, repeats, and sequences. It is a
// heuristic estimate, not a cryptographic strength guarantee.
package analyzer

import (
	"strings"
	"unicode"
)

// Level buckets a score into a coarse strength rating.
type Level int

const (
	// LevelWeak covers scores below 40.
	LevelWeak Level = iota
	// LevelFair covers scores 40-59.
	LevelFair
	// LevelGood covers scores 60-79.
	LevelGood
	// LevelStrong covers scores 80 and above.
	LevelStrong
)

// String returns a human-readable level name.
func (l Level) String() string {
	switch l {
	case LevelWeak:
		return "weak"
	case LevelFair:
		return "fair"
	case LevelGood:
		return "good"
	case LevelStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// Penalty identifies a pattern that lowered a score.
type Penalty string

const (
	PenaltyDictionary Penalty = "dictionary"
	PenaltyKeyboard   Penalty = "keyboard"
	PenaltyRepeat     Penalty = "repeat"
	PenaltySequence   Penalty = "sequence"
)

// Assessment is the full result of scoring one password.
type Assessment struct {
	Score     int       `json:"score"` // 0-100
	Level     Level     `json:"-"`
	LevelName string    `json:"level"`
	Penalties []Penalty `json:"penalties,omitempty"`
}

// Score is the convenience form of Assess returning only the number.
func Score(password string) int {
	return Assess(password).Score
}

// Assess scores a password on the fixed 0-100 rubric. The function is
// pure and deterministic: identical input always yields an identical
// assessment.
//
// Additive components:
//
//	length bracket   up to 30 points (+15 bonus at 20+ characters)
//	character classes 10 points per class present (max 40)
//	uniqueness ratio  up to 15 points (distinct runes / length)
//
// Penalties:
//
//	dictionary membership  -40
//	keyboard-adjacency run -15
//	character sequence     -15
//	repeated character run -10
func Assess(password string) Assessment {
	a := Assessment{}
	if password == "" {
		a.Level = LevelWeak
		a.LevelName = a.Level.String()
		return a
	}

	runes := []rune(password)
	score := lengthPoints(len(runes))
	score += classPoints(runes)
	score += uniquenessPoints(runes)

	if isCommonPassword(password) {
		score -= 40
		a.Penalties = append(a.Penalties, PenaltyDictionary)
	}
	if hasKeyboardRun(password, 4) {
		score -= 15
		a.Penalties = append(a.Penalties, PenaltyKeyboard)
	}
	if hasSequence(runes, 4) {
		score -= 15
		a.Penalties = append(a.Penalties, PenaltySequence)
	}
	if hasRepeatRun(runes, 3) {
		score -= 10
		a.Penalties = append(a.Penalties, PenaltyRepeat)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	a.Score = score
	a.Level = levelFor(score)
	a.LevelName = a.Level.String()
	return a
}

func levelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelStrong
	case score >= 60:
		return LevelGood
	case score >= 40:
		return LevelFair
	default:
		return LevelWeak
	}
}

func lengthPoints(n int) int {
	points := 0
	switch {
	case n >= 16:
		points = 30
	case n >= 12:
		points = 25
	case n >= 10:
		points = 20
	case n >= 8:
		points = 12
	case n >= 6:
		points = 6
	default:
		points = 2
	}
	if n >= 20 {
		points += 15
	}
	return points
}

func classPoints(runes []rune) int {
	var lower, upper, digit, symbol bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	points := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			points += 10
		}
	}
	return points
}

// uniquenessPoints scales the distinct-rune ratio to 0-15.
func uniquenessPoints(runes []rune) int {
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		seen[r] = struct{}{}
	}
	return int(15 * float64(len(seen)) / float64(len(runes)))
}

// hasRepeatRun reports a run of minRun identical consecutive runes.
func hasRepeatRun(runes []rune, minRun int) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasSequence reports a run of minRun consecutively ascending or
// descending runes, such as "abcd" or "9876".
func hasSequence(runes []rune, minRun int) bool {
	if len(runes) < minRun {
		return false
	}
	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			asc++
			desc = 1
		} else if runes[i] == runes[i-1]-1 {
			desc++
			asc = 1
		} else {
			asc, desc = 1, 1
		}
		if asc >= minRun || desc >= minRun {
			return true
		}
	}
	return false
}

// keyboardRows are the physical QWERTY rows used for adjacency checks.
var keyboardRows = []string{
	"`1234567890-=",
	"qwertyuiop[]",
	"asdfghjkl;'",
	"zxcvbnm,./",
}

// hasKeyboardRun reports a substring of minRun characters that walks a
// QWERTY row in either direction, such as "qwer" or "lkjh".
func hasKeyboardRun(password string, minRun int) bool {
	lower := strings.ToLower(password)
	if len(lower) < minRun {
		return false
	}
	for _, row := range keyboardRows {
		reversed := reverse(row)
		for i := 0; i+minRun <= len(lower); i++ {
			chunk := lower[i : i+minRun]
			if strings.Contains(row, chunk) || strings.Contains(reversed, chunk) {
				return true
			}
		}
	}
	return false
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
