package models

// TrendSignals holds frequency distributions aggregated over a batch of
// source items. Each mapping is key -> number of items the key was seen in.
type TrendSignals struct {
	Verbs         map[string]int `json:"verbs"`
	Subjects      map[string]int `json:"subjects"`
	Objects       map[string]int `json:"objects"`
	Structures    map[string]int `json:"structures"`
	AlgorithmTags map[string]int `json:"algorithm_tags"`
}

// NewTrendSignals returns signals with all five mappings initialised.
func NewTrendSignals() *TrendSignals {
	return &TrendSignals{
		Verbs:         map[string]int{},
		Subjects:      map[string]int{},
		Objects:       map[string]int{},
		Structures:    map[string]int{},
		AlgorithmTags: map[string]int{},
	}
}

// IsEmpty reports whether every mapping is empty. Empty signals are not usable
// downstream.
func (t *TrendSignals) IsEmpty() bool {
	if t == nil {
		return true
	}
	return len(t.Verbs) == 0 &&
		len(t.Subjects) == 0 &&
		len(t.Objects) == 0 &&
		len(t.Structures) == 0 &&
		len(t.AlgorithmTags) == 0
}

// Buckets returns the five mappings keyed by bucket name.
func (t *TrendSignals) Buckets() map[string]map[string]int {
	return map[string]map[string]int{
		"verb":          t.Verbs,
		"subject":       t.Subjects,
		"object":        t.Objects,
		"structure":     t.Structures,
		"algorithm_tag": t.AlgorithmTags,
	}
}

// Contains reports whether key was counted in any bucket.
func (t *TrendSignals) Contains(key string) bool {
	if t == nil {
		return false
	}
	for _, bucket := range t.Buckets() {
		if bucket[key] > 0 {
			return true
		}
	}
	return false
}
