package model

// QualityReport counts the data-quality fallbacks applied during a load.
// Defects never abort the load; they are resolved to documented fallback
// values and tallied here so callers can surface them.
type QualityReport struct {
	// UnmatchedKeys counts fact rows whose foreign key had no match,
	// keyed by dimension name.
	UnmatchedKeys map[string]int `json:"unmatched_keys,omitempty"`

	// DuplicateDimensionKeys counts dropped duplicate rows per dimension
	// (keep-first policy).
	DuplicateDimensionKeys map[string]int `json:"duplicate_dimension_keys,omitempty"`

	UnparseableDates  int `json:"unparseable_dates"`
	ZeroCollateral    int `json:"zero_collateral"`
	MalformedNumerics int `json:"malformed_numerics"`
}

// AddUnmatched records an unmatched foreign key for the named dimension.
func (q *QualityReport) AddUnmatched(dimension string) {
	if q.UnmatchedKeys == nil {
		q.UnmatchedKeys = make(map[string]int)
	}
	q.UnmatchedKeys[dimension]++
}

// AddDuplicates records dropped duplicate keys for the named dimension.
func (q *QualityReport) AddDuplicates(dimension string, n int) {
	if n == 0 {
		return
	}
	if q.DuplicateDimensionKeys == nil {
		q.DuplicateDimensionKeys = make(map[string]int)
	}
	q.DuplicateDimensionKeys[dimension] += n
}

// Total returns the number of fallbacks applied across all categories.
func (q *QualityReport) Total() int {
	n := q.UnparseableDates + q.ZeroCollateral + q.MalformedNumerics
	for _, v := range q.UnmatchedKeys {
		n += v
	}
	for _, v := range q.DuplicateDimensionKeys {
		n += v
	}
	return n
}
