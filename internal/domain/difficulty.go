package domain

import "strings"

// Difficulty ranks a step by how challenging it is. Tiers are ordered from
// easiest (DifficultyGreen) to hardest (DifficultyPurple).
type Difficulty string

const (
	// DifficultyGreen marks an easy step. It is also the fallback tier.
	DifficultyGreen Difficulty = "green"
	// DifficultyYellow marks a medium step.
	DifficultyYellow Difficulty = "yellow"
	// DifficultyRed marks a hard step.
	DifficultyRed Difficulty = "red"
	// DifficultyPurple marks a very hard, milestone step.
	DifficultyPurple Difficulty = "purple"
)

var difficultyTiers = map[Difficulty]int{
	DifficultyGreen:  0,
	DifficultyYellow: 1,
	DifficultyRed:    2,
	DifficultyPurple: 3,
}

// ParseDifficulty normalizes s into a known tier. The second return value is
// false when s was not recognized and the lowest tier was substituted.
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := difficultyTiers[d]; ok {
		return d, true
	}
	return DifficultyGreen, false
}

// Tier returns the ordinal of d, 0 for unknown values.
func (d Difficulty) Tier() int {
	return difficultyTiers[d]
}

// Valid reports whether d is one of the four known tiers.
func (d Difficulty) Valid() bool {
	_, ok := difficultyTiers[d]
	return ok
}
