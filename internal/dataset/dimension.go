package dataset

import (
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/schema"
)

// Dimension is a loaded key→label lookup table.
type Dimension struct {
	Name     string
	Fallback string

	// DuplicatesDropped counts rows discarded by the keep-first policy.
	DuplicatesDropped int

	labels map[string]string
}

// LoadDimension reads a dimension table. Duplicate keys are a data-quality
// defect: the first occurrence wins, the rest are logged and counted. A
// dimension with no configured path loads empty, so every lookup falls back.
func LoadDimension(name string, ds schema.DimensionSchema) (*Dimension, error) {
	d := &Dimension{
		Name:     name,
		Fallback: ds.Fallback,
		labels:   make(map[string]string),
	}
	if ds.Path == "" {
		return d, nil
	}

	t, err := ReadTable(ds.Path, ds.Encoding)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(ds.KeyColumn, ds.LabelColumn); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("dimension", name), zap.String("file", ds.Path))
	for i, row := range t.Rows {
		key := t.Get(row, ds.KeyColumn)
		if key == "" {
			continue
		}
		if _, exists := d.labels[key]; exists {
			d.DuplicatesDropped++
			log.Warn("duplicate dimension key dropped",
				zap.Int("row", i+2),
				zap.String("key", key),
			)
			continue
		}
		d.labels[key] = t.Get(row, ds.LabelColumn)
	}

	return d, nil
}

// Lookup resolves a foreign key. The second return is false on a miss; the
// label returned is then the dimension's fallback.
func (d *Dimension) Lookup(key string) (string, bool) {
	if label, ok := d.labels[key]; ok {
		return label, true
	}
	return d.Fallback, false
}

// Len returns the number of distinct keys loaded.
func (d *Dimension) Len() int { return len(d.labels) }
