package csv

import (
	"encoding/json"
	"strconv"
)

// ValueKind tags the dynamic type of a cell value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindText
	KindNumber
)

// Value is a small tagged cell value. Decoded CSV cells are always text;
// numbers appear when a trash snapshot is rehydrated from JSON. Using a
// tagged type instead of interface{} keeps batching and snapshotting
// exhaustively matchable.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Absent is the zero value: a cell that carries no data.
var Absent = Value{Kind: KindAbsent}

// String renders the value for display or statement building. Numbers use
// the shortest representation that round-trips; absent renders empty.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// IsNumber reports whether the value is numeric.
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// MarshalJSON encodes text as a JSON string, numbers as JSON numbers and
// absent as null, so snapshots stay readable and type-preserving.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindNumber:
		return json.Marshal(v.Number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON: strings become text,
// numbers become numeric, null and any other shape become absent.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = Text(t)
	case float64:
		*v = Number(t)
	default:
		*v = Absent
	}
	return nil
}

// Row is an ordered mapping from column name to value. Keys preserves
// header order; every key in Keys has an entry in Fields.
type Row struct {
	Keys   []string
	Fields map[string]Value
}

// NewRow returns an empty row ready for Set calls.
func NewRow() Row {
	return Row{Fields: make(map[string]Value)}
}

// Set stores a value under key, appending the key if it is new.
func (r *Row) Set(key string, v Value) {
	if _, ok := r.Fields[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Fields[key] = v
}

// Get returns the value under key, or Absent if the key does not exist.
func (r Row) Get(key string) Value {
	if v, ok := r.Fields[key]; ok {
		return v
	}
	return Absent
}

// Len returns the number of columns in the row.
func (r Row) Len() int { return len(r.Keys) }

// MarshalJSON encodes the row as a JSON object. Go maps do not preserve
// order, so snapshot readers must treat column order as advisory.
func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a JSON object into a row. Key order follows the
// decoded map and is therefore unspecified.
func (r *Row) UnmarshalJSON(data []byte) error {
	var m map[string]Value
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = NewRow()
	for k, v := range m {
		r.Set(k, v)
	}
	return nil
}
