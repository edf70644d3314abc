package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StringSlice stores a string list as a JSON text column.
// Undecodable column values load as an empty list.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func (s *StringSlice) Scan(value interface{}) error {
	return scanJSON(value, s, StringSlice{})
}

// Contains reports whether v is in the list
func (s StringSlice) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// scanJSON decodes a text/blob column into dst, falling back to empty on any
// failure so one corrupt row never breaks a whole listing.
func scanJSON[T any](value interface{}, dst *T, empty T) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*dst = empty
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*dst = empty
		return nil
	}

	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		*dst = empty
		return nil
	}
	*dst = decoded
	return nil
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
