// Package quality provides the seven-level quality scale for albums and the
// tuning table that turns a quality level into effect duration and risk.
package quality

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Category is an album's quality level, ordered worst to best.
type Category uint8

const (
	Awful Category = iota
	Poor
	Normal
	Good
	Excellent
	Masterwork
	Legendary
)

// NumCategories is the number of quality levels.
const NumCategories = 7

// maxIndex is the ordinal of the best category, used as the severity divisor.
const maxIndex = NumCategories - 1

var categoryNames = [NumCategories]string{
	"awful", "poor", "normal", "good", "excellent", "masterwork", "legendary",
}

// Clamp converts any integer into a valid category.
func Clamp(i int) Category {
	return Category(clamp(i, 0, maxIndex))
}

// Index returns the category ordinal in [0, 6].
func (c Category) Index() int {
	return clamp(int(c), 0, maxIndex)
}

// Fraction returns Index()/6, the category's position on the scale.
func (c Category) Fraction() float64 {
	return float64(c.Index()) / float64(maxIndex)
}

// String returns the lowercase category name.
func (c Category) String() string {
	return categoryNames[c.Index()]
}

// Parse resolves a category name (case-sensitive, lowercase).
func Parse(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown quality category %q", name)
}

// MarshalText encodes the category as its name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Table holds per-category tuning values.
type Table struct {
	Minutes  [NumCategories]int     `yaml:"duration_minutes" json:"duration_minutes"`
	Negative [NumCategories]float64 `yaml:"negative_probability" json:"negative_probability"`
}

// DefaultTable returns the stock tuning: short, risky sessions for awful
// albums and long, safe ones for legendary albums.
func DefaultTable() Table {
	return Table{
		Minutes:  [NumCategories]int{60, 120, 180, 240, 360, 480, 720},
		Negative: [NumCategories]float64{0.35, 0.15, 0.08, 0.04, 0.02, 0.01, 0},
	}
}

// DurationMinutes returns how long a positive effect lasts for the category.
func (t Table) DurationMinutes(c Category) int {
	return t.Minutes[c.Index()]
}

// NegativeProbability returns the chance a listener gets the negative effect.
func (t Table) NegativeProbability(c Category) float64 {
	return clamp(t.Negative[c.Index()], 0, 1)
}

// Validate checks that durations never shrink and negative chances never grow
// as quality rises.
func (t Table) Validate() error {
	for i := 0; i < NumCategories; i++ {
		if t.Minutes[i] < 0 {
			return fmt.Errorf("duration for %s is negative", Category(i))
		}
		if t.Negative[i] < 0 || t.Negative[i] > 1 {
			return fmt.Errorf("negative probability for %s out of [0,1]: %v", Category(i), t.Negative[i])
		}
		if i == 0 {
			continue
		}
		if t.Minutes[i] < t.Minutes[i-1] {
			return fmt.Errorf("duration decreases from %s to %s", Category(i-1), Category(i))
		}
		if t.Negative[i] > t.Negative[i-1] {
			return fmt.Errorf("negative probability increases from %s to %s", Category(i-1), Category(i))
		}
	}
	return nil
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
