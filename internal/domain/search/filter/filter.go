// Package filter holds the per-field search filter state and its URL encoding.
package filter

import (
	"slices"
	"sync"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// SearchFilter holds one field's filter state. All mutation goes through its methods.
type SearchFilter struct {
	mu          sync.RWMutex
	field       field.Field
	defaultData Data
	currentData Data
	useAsFilter bool
	disposed    bool
	onChange    func()
}

// Snapshot is a consistent, detached copy of a filter's state.
type Snapshot struct {
	Field       field.Field
	DefaultData Data
	CurrentData Data
	UseAsFilter bool
}

// New creates an inactive filter for a filterable field.
func New(f field.Field) (*SearchFilter, error) {
	if !f.Filterable() {
		return nil, domain.NewUnknownField(f.Name())
	}
	return &SearchFilter{
		field:       f,
		currentData: inertValue(f, nil, nil),
	}, nil
}

// OnChange installs the owner's change hook. Called after every state change, outside the lock.
func (s *SearchFilter) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Field returns the corpus field this filter belongs to.
func (s *SearchFilter) Field() field.Field { return s.field }

// Name returns the field name.
func (s *SearchFilter) Name() string { return s.field.Name() }

// FilterType returns the declared filter variant.
func (s *SearchFilter) FilterType() field.FilterType { return s.field.FilterType() }

// DefaultData returns a copy of the resolved default, nil while unresolved.
func (s *SearchFilter) DefaultData() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defaultData == nil {
		return nil
	}
	return s.defaultData.clone()
}

// HasDefault reports whether the default data has been resolved.
func (s *SearchFilter) HasDefault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultData != nil
}

// CurrentData returns a copy of the current value.
func (s *SearchFilter) CurrentData() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentData.clone()
}

// Active reports whether the filter constrains the query (useAsFilter).
func (s *SearchFilter) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useAsFilter
}

// Disposed reports whether the filter has been torn down.
func (s *SearchFilter) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// Snapshot returns a consistent copy of the whole filter state.
func (s *SearchFilter) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Field:       s.field,
		CurrentData: s.currentData.clone(),
		UseAsFilter: s.useAsFilter,
	}
	if s.defaultData != nil {
		snap.DefaultData = s.defaultData.clone()
	}
	return snap
}

// Set validates and applies a new value. On error the previous state is kept.
// Multiple-choice options and counts missing from d are carried over.
func (s *SearchFilter) Set(d Data) error {
	if err := s.check(d); err != nil {
		return err
	}
	d = normalize(d)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	if mc, ok := d.(MultipleChoiceData); ok {
		cur, _ := s.currentData.(MultipleChoiceData)
		if mc.Options == nil {
			mc.Options = slices.Clone(cur.Options)
		}
		if mc.OptionsAndCounts == nil {
			mc.OptionsAndCounts = slices.Clone(cur.OptionsAndCounts)
		}
		d = mc
	}
	changed := s.apply(d)
	hook := s.onChange
	s.mu.Unlock()

	notify(hook, changed)
	return nil
}

// SetParam decodes a URL parameter value and applies it. A value that does not decode
// leaves the filter inert and returns a MalformedParamError.
func (s *SearchFilter) SetParam(raw string) error {
	d, err := Decode(s.FilterType(), raw)
	if err != nil {
		s.Deactivate()
		return domain.NewMalformedParam(s.Name(), raw, err)
	}
	if err := s.Set(d); err != nil {
		s.Deactivate()
		return domain.NewMalformedParam(s.Name(), raw, err)
	}
	return nil
}

// Encode returns the URL parameter value and whether the filter is active.
// Inactive filters are never serialized.
func (s *SearchFilter) Encode() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.useAsFilter {
		return "", false
	}
	return Encode(s.currentData), true
}

// SetDefaultData stores the resolved default. Only the first call has an effect;
// later calls return false so callers can detect redundant resolution.
func (s *SearchFilter) SetDefaultData(d Data) (bool, error) {
	if err := s.check(d); err != nil {
		return false, err
	}
	d = normalize(d)

	s.mu.Lock()
	if s.disposed || s.defaultData != nil {
		s.mu.Unlock()
		return false, nil
	}
	s.defaultData = d

	next := s.currentData
	switch {
	case !s.useAsFilter:
		next = inertValue(s.field, s.defaultData, s.currentData)
	case s.FilterType() == field.MultipleChoice:
		cur := s.currentData.clone().(MultipleChoiceData)
		if cur.Options == nil {
			cur.Options = slices.Clone(d.(MultipleChoiceData).Options)
		}
		next = cur
	}
	changed := s.apply(next)
	hook := s.onChange
	s.mu.Unlock()

	notify(hook, changed)
	return true, nil
}

// Deactivate resets the current value to the inert value and clears useAsFilter.
func (s *SearchFilter) Deactivate() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	changed := s.store(inertValue(s.field, s.defaultData, s.currentData), false)
	hook := s.onChange
	s.mu.Unlock()

	notify(hook, changed)
}

// SetOptionCounts stores aggregated option counts on a multiple-choice filter.
func (s *SearchFilter) SetOptionCounts(counts []OptionCount) {
	s.mu.Lock()
	cur, ok := s.currentData.(MultipleChoiceData)
	if s.disposed || !ok {
		s.mu.Unlock()
		return
	}
	changed := !slices.Equal(cur.OptionsAndCounts, counts)
	cur = cur.clone().(MultipleChoiceData)
	cur.OptionsAndCounts = slices.Clone(counts)
	if cur.Options == nil {
		cur.Options = make([]string, len(counts))
		for i, c := range counts {
			cur.Options[i] = c.Value
		}
	}
	s.currentData = cur
	hook := s.onChange
	s.mu.Unlock()

	notify(hook, changed)
}

// Clone returns a deep copy detached from the owner's change hook.
func (s *SearchFilter) Clone() *SearchFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &SearchFilter{
		field:       s.field,
		currentData: s.currentData.clone(),
		useAsFilter: s.useAsFilter,
	}
	if s.defaultData != nil {
		c.defaultData = s.defaultData.clone()
	}
	return c
}

// Dispose tears the filter down. Every later mutation is ignored.
func (s *SearchFilter) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.onChange = nil
	s.mu.Unlock()
}

func (s *SearchFilter) check(d Data) error {
	if d == nil {
		return domain.NewInvalidFilterData(s.Name(), "nil data")
	}
	if d.FilterType() != s.FilterType() {
		return domain.NewInvalidFilterData(s.Name(), "got %s data for %s filter", d.FilterType(), s.FilterType())
	}
	if reason := validate(d); reason != "" {
		return domain.NewInvalidFilterData(s.Name(), "%s", reason)
	}
	return nil
}

// apply sets current data and recomputes useAsFilter. Caller holds the lock.
func (s *SearchFilter) apply(d Data) bool {
	active := !hasInert(s.field, s.defaultData) || differsFromInert(d, inertValue(s.field, s.defaultData, d))
	return s.store(d, active)
}

// store sets current data and useAsFilter. Caller holds the lock.
func (s *SearchFilter) store(d Data, active bool) bool {
	changed := active != s.useAsFilter || !sameValue(d, s.currentData)
	s.currentData = d
	s.useAsFilter = active
	return changed
}

func notify(hook func(), changed bool) {
	if changed && hook != nil {
		hook()
	}
}
