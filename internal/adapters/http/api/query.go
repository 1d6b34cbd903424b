package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

const (
	defaultMaxLimit = 100
	maxBodyBytes    = 1 << 20
)

// params reads typed query parameters, keeping the first failure.
type params struct {
	q   url.Values
	err error
}

func newParams(q url.Values) *params { return &params{q: q} }

func (p *params) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: %w", ErrBadRequest, name, err)
	}
}

func (p *params) str(name string) string { return strings.TrimSpace(p.q.Get(name)) }

func (p *params) integer(name string) (int, bool) {
	raw := p.str(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, err)
		return 0, false
	}
	if n < 0 {
		p.fail(name, errors.New("must not be negative"))
		return 0, false
	}
	return n, true
}

func (p *params) float(name string) (float64, bool) {
	raw := p.str(name)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, err)
		return 0, false
	}
	return f, true
}

func (p *params) timestamp(name string) *time.Time {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.fail(name, err)
		return nil
	}
	return &t
}

func (p *params) list(name string) []string {
	var out []string
	for _, v := range p.q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (p *params) scope() model.Scope {
	switch raw := model.Scope(p.str("scope")); raw {
	case "":
		return model.ScopeTeam
	case model.ScopeTeam, model.ScopeIndividual:
		return raw
	default:
		if p.err == nil {
			p.err = fmt.Errorf("%w: %q", errInvalidScope, raw)
		}
		return ""
	}
}

// leaderboardQuery builds a leaderboard query from the request parameters.
// A limit above maxLimit is clamped.
func leaderboardQuery(eventID string, q url.Values, maxLimit int) (types.LeaderboardQuery, error) {
	p := newParams(q)
	out := types.LeaderboardQuery{EventID: eventID, Scope: p.scope()}

	var f types.LeaderboardFilter
	filtered := false
	if v, ok := p.float("min_score"); ok {
		f.MinScore, filtered = &v, true
	}
	if v, ok := p.float("max_score"); ok {
		f.MaxScore, filtered = &v, true
	}
	if v, ok := p.integer("min_submissions"); ok {
		f.MinSubmissions, filtered = &v, true
	}
	if v, ok := p.integer("top_n"); ok {
		f.TopN, filtered = &v, true
	}
	if ids := p.list("ids"); len(ids) > 0 {
		f.IDs, filtered = ids, true
	}
	if filtered {
		out.Filter = &f
	}

	if field := p.str("sort"); field != "" {
		order := strings.ToLower(p.str("order"))
		switch order {
		case "", "desc", "asc":
		default:
			p.fail("order", fmt.Errorf("unknown order %q", order))
		}
		out.Sort = &types.LeaderboardSort{Field: types.SortField(field), Descending: order != "asc"}
	}

	out.Limit = maxLimit
	if v, ok := p.integer("limit"); ok && v > 0 && v < maxLimit {
		out.Limit = v
	}
	if v, ok := p.integer("offset"); ok {
		out.Offset = v
	}
	return out, p.err
}

func historyQuery(teamID string, q url.Values) (types.HistoryQuery, error) {
	p := newParams(q)
	out := types.HistoryQuery{
		TeamID:  teamID,
		GroupID: p.str("group_id"),
		Start:   p.timestamp("start"),
		End:     p.timestamp("end"),
	}
	if v, ok := p.integer("limit"); ok {
		out.Limit = v
	}
	return out, p.err
}

func trendQuery(teamID string, q url.Values) (types.TrendQuery, error) {
	p := newParams(q)
	out := types.TrendQuery{TeamID: teamID, GroupID: p.str("group_id")}
	if v, ok := p.integer("period_days"); ok {
		out.Period = time.Duration(v) * 24 * time.Hour
	}
	if v, ok := p.integer("data_points"); ok {
		out.DataPoints = v
	}
	return out, p.err
}

func rubricFilter(q url.Values) (model.RubricFilter, error) {
	p := newParams(q)
	out := model.RubricFilter{EventID: p.str("event_id"), GroupID: p.str("group_id")}
	if raw := p.str("template"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			p.fail("template", err)
		}
		out.TemplateOnly = b
	}
	if v, ok := p.integer("limit"); ok {
		out.Limit = v
	}
	if v, ok := p.integer("offset"); ok {
		out.Offset = v
	}
	return out, p.err
}
