package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
)

// Fingerprint identifies a scoring input: the criteria in order with their
// directions, and every value of the table. Two inputs with the same
// fingerprint produce the same result.
func Fingerprint(table domain.MetricTable, criteria []domain.Criterion) string {
	h := sha256.New()

	writeInt(h, len(criteria))
	for _, c := range criteria {
		writeString(h, c.Name)
		writeInt(h, int(c.Direction))
	}

	districts := table.Districts()
	writeInt(h, len(districts))
	for _, id := range districts {
		writeString(h, string(id))
	}

	metrics := table.Metrics()
	writeInt(h, len(metrics))
	for _, name := range metrics {
		writeString(h, name)
		for _, id := range districts {
			v, ok := table.Value(id, name)
			if !ok {
				h.Write([]byte{0})
				continue
			}
			h.Write([]byte{1})
			writeUint64(h, math.Float64bits(v))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	writeInt(h, len(s))
	h.Write([]byte(s))
}

func writeInt(h hash.Hash, n int) {
	writeUint64(h, uint64(n))
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
