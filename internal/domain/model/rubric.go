package model

import "time"

// Criterion is one weighted line of a scoring rubric.
type Criterion struct {
	Key      string    `json:"key"`
	Label    string    `json:"label,omitempty"`
	Kind     ValueKind `json:"kind"`
	Required bool      `json:"required"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Options  []string  `json:"options,omitempty"` // allowed text values; empty means any
	Weight   float64   `json:"weight"`
}

// Rubric is a named, reusable set of weighted criteria.
type Rubric struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Criteria    []Criterion `json:"criteria"`
	EventID     string      `json:"event_id,omitempty"`
	GroupID     string      `json:"group_id,omitempty"`
	IsTemplate  bool        `json:"is_template"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Criterion looks up a criterion by key.
func (r Rubric) Criterion(key string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Key == key {
			return c, true
		}
	}
	return Criterion{}, false
}

// RubricFilter selects rubrics for paginated listing.
type RubricFilter struct {
	EventID      string
	GroupID      string
	TemplateOnly bool
	Limit        int
	Offset       int
}

// RubricOverrides are applied to a cloned rubric. Empty fields keep the source value.
type RubricOverrides struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	EventID     string `json:"event_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// Copy returns a deep copy of r.
func (r Rubric) Copy() Rubric {
	out := r
	out.Criteria = make([]Criterion, len(r.Criteria))
	for i, c := range r.Criteria {
		c.Options = append([]string(nil), c.Options...)
		if c.Min != nil {
			v := *c.Min
			c.Min = &v
		}
		if c.Max != nil {
			v := *c.Max
			c.Max = &v
		}
		out.Criteria[i] = c
	}
	return out
}

// Derive returns a copy of r under a new id with overrides applied.
// The copy is never a template.
func (r Rubric) Derive(id string, o RubricOverrides, at time.Time) Rubric {
	out := r.Copy()
	out.ID = id
	out.IsTemplate = false
	out.CreatedAt = at
	if o.Name != "" {
		out.Name = o.Name
	} else {
		out.Name = r.Name + " (copy)"
	}
	if o.Description != "" {
		out.Description = o.Description
	}
	if o.EventID != "" {
		out.EventID = o.EventID
	}
	if o.GroupID != "" {
		out.GroupID = o.GroupID
	}
	if o.CreatedBy != "" {
		out.CreatedBy = o.CreatedBy
	}
	return out
}
