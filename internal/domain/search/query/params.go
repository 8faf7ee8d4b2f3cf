package query

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/corpusq/internal/domain"
)

// Model-level parameter keys. Filter keys are the field names.
const (
	KeyQuery     = "query"
	KeySort      = "sort"
	KeyHighlight = "highlight"
)

// Params is the canonical parameter map of a model: one encoded value per key.
type Params map[string]string

// Equal reports whether both maps hold the same keys and values.
func (p Params) Equal(o Params) bool { return maps.Equal(p, o) }

// String returns the params as a sorted, encoded query string.
func (p Params) String() string { return p.Values().Encode() }

// Values converts the params to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, s := range p {
		v.Set(k, s)
	}
	return v
}

// String renders the sort as "<field>,<direction>".
func (s Sort) String() string {
	if s.IsZero() {
		return ""
	}
	return s.Field + "," + string(s.Direction)
}

// ParseSort parses "<field>,<asc|desc>". A bare field sorts ascending.
func ParseSort(raw string) (Sort, error) {
	name, dir, _ := strings.Cut(raw, ",")
	if name == "" {
		return Sort{}, fmt.Errorf("empty sort field")
	}
	s := Sort{Field: name, Direction: Direction(dir)}
	switch s.Direction {
	case "":
		s.Direction = Asc
	case Asc, Desc:
	default:
		return Sort{}, fmt.Errorf("invalid sort direction %q", dir)
	}
	return s, nil
}

// RelevantKeys returns every parameter key the model reads or writes.
func (m *Model) RelevantKeys() []string {
	keys := make([]string, 0, len(m.filters)+3)
	keys = append(keys, KeyQuery, KeySort, KeyHighlight)
	for _, sf := range m.filters {
		keys = append(keys, sf.Name())
	}
	return keys
}

// IsRelevant reports whether key belongs to the model.
func (m *Model) IsRelevant(key string) bool {
	switch key {
	case KeyQuery, KeySort, KeyHighlight:
		return true
	}
	_, ok := m.byName[key]
	return ok
}

// Params serializes the state. Only active filters appear; default values are omitted.
func (m *Model) Params() Params {
	p := make(Params)
	m.mu.RLock()
	if m.queryText != "" {
		p[KeyQuery] = m.queryText
	}
	if !m.sort.IsZero() {
		p[KeySort] = m.sort.String()
	}
	if m.highlight > 0 {
		p[KeyHighlight] = strconv.Itoa(m.highlight)
	}
	m.mu.RUnlock()
	for _, sf := range m.filters {
		if raw, ok := sf.Encode(); ok {
			p[sf.Name()] = raw
		}
	}
	return p
}

// Relevant extracts the model's keys from URL values. Repeated keys are joined with ",".
func (m *Model) Relevant(v url.Values) Params {
	p := make(Params)
	for key, vals := range v {
		if !m.IsRelevant(key) || len(vals) == 0 {
			continue
		}
		p[key] = strings.Join(vals, ",")
	}
	return p
}

// ApplyParams replaces the state with the one described by p. Keys absent from p
// reset to their defaults. A malformed value leaves its filter inert and does not
// stop the rest of the parse; all such failures are joined into the returned error.
func (m *Model) ApplyParams(p Params) error {
	var errs []error

	m.SetQueryText(p[KeyQuery])

	sort := Sort{}
	if raw, ok := p[KeySort]; ok {
		s, err := ParseSort(raw)
		if err == nil {
			err = m.validateSort(s)
		}
		if err != nil {
			errs = append(errs, domain.NewMalformedParam(KeySort, raw, err))
		} else {
			sort = s
		}
	}
	_ = m.SetSort(sort)

	highlight := 0
	if raw, ok := p[KeyHighlight]; ok {
		n, err := strconv.Atoi(raw)
		if err == nil && n <= 0 {
			err = fmt.Errorf("must be positive")
		}
		if err != nil {
			errs = append(errs, domain.NewMalformedParam(KeyHighlight, raw, err))
		} else {
			highlight = n
		}
	}
	_ = m.SetHighlight(highlight)

	for _, sf := range m.filters {
		raw, ok := p[sf.Name()]
		if !ok {
			sf.Deactivate()
			continue
		}
		if err := sf.SetParam(raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
