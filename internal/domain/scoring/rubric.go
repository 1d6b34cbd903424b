package scoring

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/okian/arena/internal/domain/model"
)

// ValidateRubric checks a rubric definition. Keys must be unique and
// non-empty, kinds known, weights non-negative and numeric bounds ordered.
func ValidateRubric(r model.Rubric) error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(r.Criteria) == 0 {
		errs = append(errs, errors.New("at least one criterion is required"))
	}
	seen := make(map[string]struct{}, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.Key == "" {
			errs = append(errs, fmt.Errorf("criterion %d: key is required", i))
			continue
		}
		if _, dup := seen[c.Key]; dup {
			errs = append(errs, fmt.Errorf("criterion %q: duplicate key", c.Key))
		}
		seen[c.Key] = struct{}{}
		switch c.Kind {
		case model.KindNumeric, model.KindText, model.KindBoolean:
		default:
			errs = append(errs, fmt.Errorf("criterion %q: unknown kind %q", c.Key, c.Kind))
		}
		if c.Weight < 0 {
			errs = append(errs, fmt.Errorf("criterion %q: negative weight", c.Key))
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			errs = append(errs, fmt.Errorf("criterion %q: min exceeds max", c.Key))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRubric, errors.Join(errs...))
	}
	return nil
}

// ValidateValues checks a judge's value map against the rubric: every key
// must be a known criterion of the matching kind, within range or among the
// allowed options, and every required criterion must be present.
func ValidateValues(r model.Rubric, values map[string]model.CriterionValue) error {
	var errs []error

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := values[key]
		c, ok := r.Criterion(key)
		if !ok {
			errs = append(errs, fmt.Errorf("criterion %q: not in rubric", key))
			continue
		}
		if v.Kind() != c.Kind {
			errs = append(errs, fmt.Errorf("criterion %q: want %s, got %s", key, c.Kind, kindName(v)))
			continue
		}
		switch c.Kind {
		case model.KindNumeric:
			f, _ := v.Float()
			if c.Min != nil && f < *c.Min {
				errs = append(errs, fmt.Errorf("criterion %q: %g below minimum %g", key, f, *c.Min))
			}
			if c.Max != nil && f > *c.Max {
				errs = append(errs, fmt.Errorf("criterion %q: %g above maximum %g", key, f, *c.Max))
			}
		case model.KindText:
			s, _ := v.Str()
			if len(c.Options) > 0 && !slices.Contains(c.Options, s) {
				errs = append(errs, fmt.Errorf("criterion %q: %q is not an allowed option", key, s))
			}
		}
	}

	for _, c := range r.Criteria {
		if !c.Required {
			continue
		}
		if v, ok := values[c.Key]; !ok || v.IsZero() {
			errs = append(errs, fmt.Errorf("criterion %q: required", c.Key))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidScore, errors.Join(errs...))
	}
	return nil
}

// WeightedTotal sums weight*value over numeric criteria and adds the weight
// of each boolean criterion that is true. Text criteria do not contribute.
func WeightedTotal(r model.Rubric, values map[string]model.CriterionValue) float64 {
	var total float64
	for _, c := range r.Criteria {
		v, ok := values[c.Key]
		if !ok {
			continue
		}
		switch c.Kind {
		case model.KindNumeric:
			if f, ok := v.Float(); ok {
				total += c.Weight * f
			}
		case model.KindBoolean:
			if b, ok := v.Bool(); ok && b {
				total += c.Weight
			}
		}
	}
	return total
}

func kindName(v model.CriterionValue) string {
	if v.IsZero() {
		return "nothing"
	}
	return string(v.Kind())
}
