package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels returned by Unwrap on the typed errors below, for errors.Is checks.
var (
	ErrIncompleteCriterion  = errors.New("incomplete criterion")
	ErrCriterionSetMismatch = errors.New("criterion set mismatch")
	ErrEmptyCriterionSet    = errors.New("empty criterion set")
	ErrInvalidDirection     = errors.New("invalid direction")
	ErrDuplicateDistrict    = errors.New("duplicate district")
	ErrDuplicateCriterion   = errors.New("duplicate criterion")
)

// IncompleteCriterionError reports districts whose value for a criterion is
// missing or not finite. Districts is sorted.
type IncompleteCriterionError struct {
	Criterion string
	Districts []DistrictID
}

func (e *IncompleteCriterionError) Error() string {
	name := e.Criterion
	if name == "" {
		name = "<unnamed>"
	}
	if len(e.Districts) == 0 {
		return fmt.Sprintf("criterion %q has no values", name)
	}
	return fmt.Sprintf("criterion %q: missing or non-finite value for %s", name, joinIDs(e.Districts))
}

func (e *IncompleteCriterionError) Unwrap() error { return ErrIncompleteCriterion }

// CriterionSetMismatchError reports criteria that disagree on the district
// universe. Missing holds districts other criteria cover but Criterion does
// not; Extra holds districts only Criterion covers.
type CriterionSetMismatchError struct {
	Criterion string
	Reference string
	Missing   []DistrictID
	Extra     []DistrictID
}

func (e *CriterionSetMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "criterion %q disagrees with %q on districts", e.Criterion, e.Reference)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", joinIDs(e.Missing))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "; extra %s", joinIDs(e.Extra))
	}
	return b.String()
}

func (e *CriterionSetMismatchError) Unwrap() error { return ErrCriterionSetMismatch }

// EmptyCriterionSetError is returned when a run is asked to score zero criteria.
type EmptyCriterionSetError struct{}

func (e *EmptyCriterionSetError) Error() string { return "no criteria supplied" }

func (e *EmptyCriterionSetError) Unwrap() error { return ErrEmptyCriterionSet }

// InvalidDirectionError reports an unrecognized direction tag.
type InvalidDirectionError struct {
	Criterion string
	Value     string
}

func (e *InvalidDirectionError) Error() string {
	if e.Criterion == "" {
		return fmt.Sprintf("invalid direction %q", e.Value)
	}
	return fmt.Sprintf("criterion %q: invalid direction %q", e.Criterion, e.Value)
}

func (e *InvalidDirectionError) Unwrap() error { return ErrInvalidDirection }

func joinIDs(ids []DistrictID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
