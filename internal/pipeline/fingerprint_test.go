package pipeline_test

import (
	"testing"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/couchcryptid/fire-vulnerability-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintTable(t *testing.T, rows ...domain.District) domain.MetricTable {
	t.Helper()
	table, err := domain.NewMetricTable(rows)
	require.NoError(t, err)
	return table
}

func TestFingerprint(t *testing.T) {
	criteria := testCriteria()
	base := fingerprintTable(t,
		domain.District{ID: "A", Metrics: map[string]float64{"fire_incidents": 1, "emergency_extinguishers": 2}},
		domain.District{ID: "B", Metrics: map[string]float64{"fire_incidents": 3, "emergency_extinguishers": 4}},
	)
	fp := pipeline.Fingerprint(base, criteria)
	assert.Len(t, fp, 64)

	t.Run("row order does not matter", func(t *testing.T) {
		reordered := fingerprintTable(t,
			domain.District{ID: "B", Metrics: map[string]float64{"fire_incidents": 3, "emergency_extinguishers": 4}},
			domain.District{ID: "A", Metrics: map[string]float64{"fire_incidents": 1, "emergency_extinguishers": 2}},
		)
		assert.Equal(t, fp, pipeline.Fingerprint(reordered, criteria))
	})

	t.Run("value change", func(t *testing.T) {
		changed := fingerprintTable(t,
			domain.District{ID: "A", Metrics: map[string]float64{"fire_incidents": 1, "emergency_extinguishers": 2}},
			domain.District{ID: "B", Metrics: map[string]float64{"fire_incidents": 3.5, "emergency_extinguishers": 4}},
		)
		assert.NotEqual(t, fp, pipeline.Fingerprint(changed, criteria))
	})

	t.Run("missing value", func(t *testing.T) {
		missing := fingerprintTable(t,
			domain.District{ID: "A", Metrics: map[string]float64{"fire_incidents": 1, "emergency_extinguishers": 2}},
			domain.District{ID: "B", Metrics: map[string]float64{"fire_incidents": 3}},
		)
		assert.NotEqual(t, fp, pipeline.Fingerprint(missing, criteria))
	})

	t.Run("criteria direction", func(t *testing.T) {
		flipped := testCriteria()
		flipped[0].Direction = domain.LowerIsWorse
		assert.NotEqual(t, fp, pipeline.Fingerprint(base, flipped))
	})

	t.Run("criteria order", func(t *testing.T) {
		swapped := testCriteria()
		swapped[0], swapped[1] = swapped[1], swapped[0]
		assert.NotEqual(t, fp, pipeline.Fingerprint(base, swapped))
	})
}
