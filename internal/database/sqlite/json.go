// Package sqlite implements the monitoring store interfaces over sqlite.
// Nested policy structures (conditions, channels, escalations, factors)
// are stored as JSON columns; everything queried or filtered on is a
// first-class column.
package sqlite

import (
	"encoding/json"
	"fmt"
)

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(data string, v interface{}) error {
	if data == "" || data == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal column: %w", err)
	}
	return nil
}
