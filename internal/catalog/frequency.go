package catalog

import "strings"

// Frequency is how often a task must be satisfied.
type Frequency string

const (
	Monthly       Frequency = "monthly"
	Quarterly     Frequency = "quarterly"
	TwiceAnnually Frequency = "twice annually"
	Annually      Frequency = "annually"
	Biennially    Frequency = "biennially"
	Every5Years   Frequency = "every 5 years"
)

// GraceDays extends every validity window before a submission goes stale.
const GraceDays = 30

var validityDays = map[Frequency]int{
	Monthly:       30,
	Quarterly:     90,
	TwiceAnnually: 180,
	Annually:      365,
	Biennially:    730,
	Every5Years:   1825,
}

var expectedCount = map[Frequency]int{
	Monthly:       12,
	Quarterly:     4,
	TwiceAnnually: 2,
	Annually:      1,
	Biennially:    1,
	Every5Years:   1,
}

// ParseFrequency normalizes a rule's frequency label. ok is false for
// labels with no mapping; callers that need a fallback use Annually.
func ParseFrequency(label string) (Frequency, bool) {
	f := Frequency(strings.ToLower(strings.TrimSpace(label)))
	_, ok := validityDays[f]
	return f, ok
}

// ValidityDays returns the validity interval in days, defaulting to
// Annually for unmapped frequencies.
func ValidityDays(label string) int {
	f, ok := ParseFrequency(label)
	if !ok {
		return validityDays[Annually]
	}
	return validityDays[f]
}

// ExpectedCount returns how many submissions a scoring cycle expects,
// defaulting to 1 for unmapped frequencies.
func ExpectedCount(label string) int {
	f, ok := ParseFrequency(label)
	if !ok {
		return 1
	}
	return expectedCount[f]
}
