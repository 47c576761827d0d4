package model

import (
	"encoding/json"
	"strconv"
)

// Holdings maps a goal id to an agent's signed token count for that goal.
// Positive is long, negative is short. It serializes as a JSON object with
// string keys (e.g. {"3": -2}) to stay compatible with the original
// Python service's str(goal_id)-keyed records.
type Holdings map[int64]int64

// MarshalJSON implements json.Marshaler.
func (h Holdings) MarshalJSON() ([]byte, error) {
	out := make(map[string]int64, len(h))
	for goalID, qty := range h {
		out[strconv.FormatInt(goalID, 10)] = qty
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Holdings) UnmarshalJSON(data []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Holdings, len(raw))
	for key, qty := range raw {
		goalID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return err
		}
		out[goalID] = qty
	}
	*h = out
	return nil
}

// Clone returns a shallow copy safe for independent mutation.
func (h Holdings) Clone() Holdings {
	out := make(Holdings, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
