package domain

import (
	"bytes"
	"encoding/json"
	"slices"
)

// UnmarshalJSON aceita as formas que o arquivo pode ter: "[]" para estado vazio,
// e por cliente tanto uma lista de timestamps quanto um objeto índice → timestamp
// (lista filtrada gravada com os índices originais). Entradas ilegíveis são ignoradas.
func (s *State) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.HasPrefix(b, []byte("[")) {
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*s = State{}
		return nil
	}

	var raw map[Key]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(State, len(raw))
	for k, v := range raw {
		if ts, ok := decodeTimestamps(v); ok {
			out[k] = ts
		}
	}
	*s = out
	return nil
}

func decodeTimestamps(v json.RawMessage) ([]int64, bool) {
	var list []int64
	if err := json.Unmarshal(v, &list); err == nil {
		return list, true
	}

	var byIndex map[string]int64
	if err := json.Unmarshal(v, &byIndex); err != nil {
		return nil, false
	}
	ts := make([]int64, 0, len(byIndex))
	for _, t := range byIndex {
		ts = append(ts, t)
	}
	slices.Sort(ts)
	return ts, true
}
