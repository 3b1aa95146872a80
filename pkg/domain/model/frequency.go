package model

import "sort"

// FrequencyOption is one selectable update cadence
type FrequencyOption struct {
	Seconds int
	Label   string
}

// FrequencyTable is the immutable set of cadences a user can choose from
type FrequencyTable struct {
	options []FrequencyOption // ascending by Seconds
	index   map[int]FrequencyOption
}

// NewFrequencyTable builds a table from the given options. Duplicated seconds keep the last label.
func NewFrequencyTable(options ...FrequencyOption) *FrequencyTable {
	index := make(map[int]FrequencyOption, len(options))
	for _, opt := range options {
		index[opt.Seconds] = opt
	}

	sorted := make([]FrequencyOption, 0, len(index))
	for _, opt := range index {
		sorted = append(sorted, opt)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Seconds < sorted[j].Seconds
	})

	return &FrequencyTable{options: sorted, index: index}
}

// DefaultFrequencyTable returns the cadences offered in the Home tab
func DefaultFrequencyTable() *FrequencyTable {
	return NewFrequencyTable(
		FrequencyOption{Seconds: 3600, Label: "Every Hour"},
		FrequencyOption{Seconds: 7200, Label: "Every 2 Hours"},
		FrequencyOption{Seconds: 14400, Label: "Every 4 Hours"},
		FrequencyOption{Seconds: 28800, Label: "Every 8 Hours"},
		FrequencyOption{Seconds: 43200, Label: "Every 12 Hours"},
		FrequencyOption{Seconds: 86400, Label: "Every Day"},
		FrequencyOption{Seconds: 172800, Label: "Every 2 Days"},
		FrequencyOption{Seconds: 604800, Label: "Every Week"},
	)
}

// Options returns a copy of all options in ascending order of seconds
func (t *FrequencyTable) Options() []FrequencyOption {
	out := make([]FrequencyOption, len(t.options))
	copy(out, t.options)
	return out
}

// Lookup returns the option for the given seconds value
func (t *FrequencyTable) Lookup(seconds int) (FrequencyOption, bool) {
	opt, ok := t.index[seconds]
	return opt, ok
}

// Contains reports whether seconds is a selectable cadence
func (t *FrequencyTable) Contains(seconds int) bool {
	_, ok := t.index[seconds]
	return ok
}

// Label returns the human readable label, or an empty string for unknown values
func (t *FrequencyTable) Label(seconds int) string {
	return t.index[seconds].Label
}
