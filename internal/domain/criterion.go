package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Direction says which end of a criterion's value range is more vulnerable.
type Direction int

const (
	// HigherIsWorse ranks the largest value as most vulnerable (e.g. response time).
	HigherIsWorse Direction = iota + 1
	// LowerIsWorse ranks the smallest value as most vulnerable (e.g. extinguisher count).
	LowerIsWorse
)

// ParseDirection accepts "higher_is_worse" or "lower_is_worse", case-insensitive,
// with '-' or ' ' as separators.
func ParseDirection(s string) (Direction, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "higher_is_worse":
		return HigherIsWorse, nil
	case "lower_is_worse":
		return LowerIsWorse, nil
	default:
		return 0, &InvalidDirectionError{Value: s}
	}
}

// Valid reports whether d is one of the declared directions.
func (d Direction) Valid() bool {
	return d == HigherIsWorse || d == LowerIsWorse
}

func (d Direction) String() string {
	switch d {
	case HigherIsWorse:
		return "higher_is_worse"
	case LowerIsWorse:
		return "lower_is_worse"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText encodes the direction tag used in config files and JSON.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, &InvalidDirectionError{Value: d.String()}
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses a direction tag.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// worse reports whether value a is more vulnerable than b under d.
func (d Direction) worse(a, b float64) bool {
	if d == LowerIsWorse {
		return a < b
	}
	return a > b
}

// Criterion is a named, directional scoring dimension. Label and Column are
// presentation and ingestion details; only Name and Direction affect ranking.
type Criterion struct {
	Name      string    `json:"name"`
	Label     string    `json:"label,omitempty"`
	Column    string    `json:"column,omitempty"`
	Direction Direction `json:"direction"`
}

// SourceColumn returns the input column holding the criterion's raw values.
func (c Criterion) SourceColumn() string {
	if c.Column != "" {
		return c.Column
	}
	return c.Name
}

// Validate checks the name and direction.
func (c Criterion) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("criterion name is required")
	}
	if !c.Direction.Valid() {
		return &InvalidDirectionError{Criterion: c.Name, Value: c.Direction.String()}
	}
	return nil
}

// ValidateCriteria checks a criterion list for a scoring run: non-empty,
// valid entries, unique names.
func ValidateCriteria(criteria []Criterion) error {
	if len(criteria) == 0 {
		return &EmptyCriterionSetError{}
	}
	seen := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCriterion, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
