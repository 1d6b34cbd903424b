// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ValueKind tags the variant held by a CriterionValue.
type ValueKind string

// Supported criterion value kinds.
const (
	KindNumeric ValueKind = "numeric"
	KindText    ValueKind = "text"
	KindBoolean ValueKind = "boolean"
)

// ErrUnsupportedValue is returned when a raw value cannot be represented as a CriterionValue.
var ErrUnsupportedValue = errors.New("unsupported criterion value")

// CriterionValue is a tagged union of the values a judge may record for one
// rubric criterion. The zero value has no kind and is never valid.
type CriterionValue struct {
	kind ValueKind
	num  float64
	text string
	flag bool
}

// Numeric builds a numeric criterion value.
func Numeric(v float64) CriterionValue { return CriterionValue{kind: KindNumeric, num: v} }

// Text builds a free-text criterion value.
func Text(s string) CriterionValue { return CriterionValue{kind: KindText, text: s} }

// Boolean builds a yes/no criterion value.
func Boolean(b bool) CriterionValue { return CriterionValue{kind: KindBoolean, flag: b} }

// ValueOf converts a decoded scalar (as produced by encoding/json or yaml) into a CriterionValue.
func ValueOf(raw any) (CriterionValue, error) {
	switch v := raw.(type) {
	case float64:
		return Numeric(v), nil
	case float32:
		return Numeric(float64(v)), nil
	case int:
		return Numeric(float64(v)), nil
	case int64:
		return Numeric(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return CriterionValue{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, v)
		}
		return Numeric(f), nil
	case string:
		return Text(v), nil
	case bool:
		return Boolean(v), nil
	case CriterionValue:
		return v, nil
	default:
		return CriterionValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// Kind reports which variant is populated.
func (v CriterionValue) Kind() ValueKind { return v.kind }

// IsZero reports whether the value carries no variant.
func (v CriterionValue) IsZero() bool { return v.kind == "" }

// Float returns the numeric payload and whether the value is numeric.
func (v CriterionValue) Float() (float64, bool) { return v.num, v.kind == KindNumeric }

// Str returns the text payload and whether the value is text.
func (v CriterionValue) Str() (string, bool) { return v.text, v.kind == KindText }

// Bool returns the boolean payload and whether the value is boolean.
func (v CriterionValue) Bool() (bool, bool) { return v.flag, v.kind == KindBoolean }

// Equal reports whether two values hold the same variant and payload.
func (v CriterionValue) Equal(o CriterionValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumeric:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindBoolean:
		return v.flag == o.flag
	default:
		return true
	}
}

func (v CriterionValue) String() string {
	switch v.kind {
	case KindNumeric:
		return fmt.Sprintf("%g", v.num)
	case KindText:
		return v.text
	case KindBoolean:
		return fmt.Sprintf("%t", v.flag)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v CriterionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumeric:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindBoolean:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON number, string or boolean.
func (v *CriterionValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Score is one judge's evaluation of one submission.
type Score struct {
	ID           string                    `json:"id"`
	SubmissionID string                    `json:"submission_id"`
	JudgeID      string                    `json:"judge_id"`
	EventID      string                    `json:"event_id"`
	RubricID     string                    `json:"rubric_id,omitempty"`
	Values       map[string]CriterionValue `json:"values"`
	Comments     string                    `json:"comments,omitempty"`
	Total        *float64                  `json:"total,omitempty"` // nil until a rubric is applied
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// HasTotal reports whether a rubric total has been computed for the score.
func (s Score) HasTotal() bool { return s.Total != nil }

// ScoreChanged notifies that a score row was created or updated.
// Consumers treat it only as a recompute trigger.
type ScoreChanged struct {
	ScoreID      string    `json:"score_id"`
	SubmissionID string    `json:"submission_id"`
	EventID      string    `json:"event_id"`
	JudgeID      string    `json:"judge_id"`
	At           time.Time `json:"at"`
}
