package models

import "sort"

// CounterKind names one per-company sequence. Each kind owns a three letter tag used in formatted identifiers.
type CounterKind string

const (
	CounterKindClient   CounterKind = "client"
	CounterKindMarketer CounterKind = "marketer"
)

var counterKindTags = map[CounterKind]string{
	CounterKindClient:   "CLT",
	CounterKindMarketer: "MKT",
}

// Tag returns the identifier tag for k
func (k CounterKind) Tag() (string, bool) {
	tag, ok := counterKindTags[k]
	return tag, ok
}

func (k CounterKind) IsValid() bool {
	_, ok := counterKindTags[k]
	return ok
}

func (k CounterKind) String() string {
	return string(k)
}

// CounterKinds lists every registered kind in a stable order
func CounterKinds() []CounterKind {
	kinds := make([]CounterKind, 0, len(counterKindTags))
	for k := range counterKindTags {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
