package audit

import (
	"encoding/json"
	"reflect"
)

// DefaultSkip lists fields never reported as changed
var DefaultSkip = []string{"created_at", "updated_at"}

// Diff compares the JSON encodings of before and after field by field and
// returns every field whose decoded value differs by deep equality.
// Fields in DefaultSkip and skip are ignored.
func Diff(before, after interface{}, skip ...string) (Changes, error) {
	b, err := toMap(before)
	if err != nil {
		return nil, err
	}
	a, err := toMap(after)
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(DefaultSkip)+len(skip))
	for _, f := range DefaultSkip {
		ignored[f] = true
	}
	for _, f := range skip {
		ignored[f] = true
	}

	changes := Changes{}
	for field, prev := range b {
		if ignored[field] {
			continue
		}
		next, ok := a[field]
		if !ok || !reflect.DeepEqual(prev, next) {
			changes[field] = Change{Anterior: prev, Novo: next}
		}
	}
	for field, next := range a {
		if ignored[field] {
			continue
		}
		if _, ok := b[field]; !ok {
			changes[field] = Change{Anterior: nil, Novo: next}
		}
	}
	return changes, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
