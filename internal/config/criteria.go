package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// criterionEntry is one item of the criteria file.
type criterionEntry struct {
	Name      string `koanf:"name"`
	Label     string `koanf:"label"`
	Column    string `koanf:"column"`
	Direction string `koanf:"direction"`
}

// LoadCriteria reads the scoring criteria from a YAML file of the form
//
//	criteria:
//	  - name: fire_incidents
//	    label: 화재발생건수
//	    column: 화재발생건수
//	    direction: higher_is_worse
//
// The list order is kept. Entries are validated the same way a scoring run
// validates them, so a bad direction surfaces as domain.InvalidDirectionError.
func LoadCriteria(path string) ([]domain.Criterion, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load criteria file %s: %w", path, err)
	}
	return parseCriteria(k)
}

func parseCriteria(k *koanf.Koanf) ([]domain.Criterion, error) {
	var entries []criterionEntry
	if err := k.Unmarshal("criteria", &entries); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}

	criteria := make([]domain.Criterion, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		dir, err := domain.ParseDirection(e.Direction)
		if err != nil {
			var invalid *domain.InvalidDirectionError
			if errors.As(err, &invalid) {
				invalid.Criterion = name
			}
			return nil, fmt.Errorf("criteria[%d]: %w", i, err)
		}
		criteria = append(criteria, domain.Criterion{
			Name:      name,
			Label:     strings.TrimSpace(e.Label),
			Column:    strings.TrimSpace(e.Column),
			Direction: dir,
		})
	}

	if err := domain.ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}
