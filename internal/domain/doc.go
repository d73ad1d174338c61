// Package domain implements the district fire-vulnerability ranking engine.
//
// # Data Source
//
// Inputs are per-district raw metrics for Seoul's 25 autonomous districts
// (자치구): emergency fire-extinguisher installations, the share of
// non-apartment housing, population density, aged housing stock, population
// per firefighter, fire incidents, population per safety center, dispatch
// time and elderly population. Ingestion (CSV decoding, cp949 handling) is
// done by adapters; this package only sees a [MetricTable].
//
// # Ranking Convention
//
// Each criterion carries an explicit [Direction]. A criterion is ranked so
// that the most vulnerable district on it holds the highest rank and the
// least vulnerable holds rank 1:
//
//	HigherIsWorse: values sorted ascending, largest value → rank N
//	LowerIsWorse:  values sorted descending, smallest value → rank N
//
// Ties use standard competition ranking ("1224"): equal values share a rank
// and the next distinct value skips by the number of tied districts. The same
// rule applies to every criterion so rank sums stay comparable.
//
// # Composite Score
//
// A district's composite score is the unweighted sum of its criterion ranks,
// so a higher score means a more vulnerable district. Districts are ordered
// by that sum, largest first, and given a final rank with the same tie rule:
// final rank 1 is the most vulnerable district overall. Listings order tied
// districts by ascending id, so every output is independent of map iteration
// order.
//
// # Failure Modes
//
// A run either scores every district or fails without output:
//
//	IncompleteCriterionError   a value is missing or not finite
//	CriterionSetMismatchError  criteria disagree on the district universe
//	EmptyCriterionSetError     no criteria supplied
//	InvalidDirectionError      unrecognized direction tag
//
// Missing values are never treated as zero.
package domain
