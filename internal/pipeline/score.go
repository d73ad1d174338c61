package pipeline

import (
	"context"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
)

// EngineScorer implements Scorer by running the ranking engine directly.
type EngineScorer struct{}

// Score evaluates the criteria against the table.
func (EngineScorer) Score(ctx context.Context, table domain.MetricTable, criteria []domain.Criterion) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	return domain.Evaluate(table, criteria)
}
