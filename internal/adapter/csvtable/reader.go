// Package csvtable loads a district metrics table from a CSV file with one
// row per district and one column per criterion.
package csvtable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Reader loads the metric table for a fixed set of criteria from a file.
// It implements pipeline.TableSource.
type Reader struct {
	path           string
	encoding       string
	districtColumn string
	criteria       []domain.Criterion
}

// NewReader creates a Reader. encoding is one of utf-8, cp949 or euc-kr.
func NewReader(path, encoding, districtColumn string, criteria []domain.Criterion) *Reader {
	return &Reader{
		path:           path,
		encoding:       encoding,
		districtColumn: districtColumn,
		criteria:       criteria,
	}
}

// LoadTable reads and parses the file. The file is re-read on every call so
// that a refresh picks up new data.
func (r *Reader) LoadTable(ctx context.Context) (domain.MetricTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.MetricTable{}, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return domain.MetricTable{}, fmt.Errorf("open metrics table: %w", err)
	}
	defer f.Close()

	table, err := Decode(f, r.encoding, r.districtColumn, r.criteria)
	if err != nil {
		return domain.MetricTable{}, fmt.Errorf("%s: %w", r.path, err)
	}
	return table, nil
}

// Decode parses CSV data into a metric table keyed by criterion name. Each
// criterion reads the column named by Criterion.SourceColumn. Cells may use
// thousands separators. An empty cell leaves the value absent.
func Decode(src io.Reader, encoding, districtColumn string, criteria []domain.Criterion) (domain.MetricTable, error) {
	decoded, err := decodingReader(src, encoding)
	if err != nil {
		return domain.MetricTable{}, err
	}

	cr := csv.NewReader(decoded)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.MetricTable{}, errors.New("metrics table is empty")
	}
	if err != nil {
		return domain.MetricTable{}, fmt.Errorf("read header: %w", err)
	}

	idCol, cols, err := locateColumns(header, districtColumn, criteria)
	if err != nil {
		return domain.MetricTable{}, err
	}

	var rows []domain.District
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.MetricTable{}, fmt.Errorf("read row: %w", err)
		}

		row := domain.District{
			ID:      domain.DistrictID(strings.TrimSpace(record[idCol])),
			Metrics: make(map[string]float64, len(criteria)),
		}
		for i, c := range criteria {
			cell := strings.TrimSpace(record[cols[i]])
			if cell == "" {
				continue
			}
			v, err := parseNumber(cell)
			if err != nil {
				return domain.MetricTable{}, fmt.Errorf("line %d column %q: invalid number %q", line, c.SourceColumn(), cell)
			}
			row.Metrics[c.Name] = v
		}
		rows = append(rows, row)
	}

	return domain.NewMetricTable(rows)
}

func decodingReader(src io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "cp949", "euc-kr", "euckr":
		return transform.NewReader(src, korean.EUCKR.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// locateColumns returns the index of the district column and of each
// criterion's source column, in criteria order.
func locateColumns(header []string, districtColumn string, criteria []domain.Criterion) (int, []int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	idCol, ok := index[districtColumn]
	if !ok {
		return 0, nil, fmt.Errorf("district column %q not found", districtColumn)
	}

	cols := make([]int, len(criteria))
	var missing []string
	for i, c := range criteria {
		col, ok := index[c.SourceColumn()]
		if !ok {
			missing = append(missing, c.SourceColumn())
			continue
		}
		cols[i] = col
	}
	if len(missing) > 0 {
		return 0, nil, fmt.Errorf("criterion columns not found: %s", strings.Join(missing, ", "))
	}
	return idCol, cols, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
