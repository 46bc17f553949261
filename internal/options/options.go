// Package options holds the user's processing parameters: named families that
// can be switched on and off and carry an ordered set of numeric values.
package options

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gwlsn/augmentor/internal/validation"
)

// ErrPresetOnly is returned when a custom value is offered to a family that
// only accepts its fixed presets.
var ErrPresetOnly = errors.New("family accepts presets only")

// Family is the state of one option family.
type Family struct {
	Name    string    `json:"name"`
	Type    ValueType `json:"type"`
	Enabled bool      `json:"enabled"`
	Values  []float64 `json:"values"`
	Bounds  *Bounds   `json:"bounds,omitempty"`

	presets []float64
	label   func(float64) string
}

// Labels renders each value the way the option card shows it.
func (f *Family) Labels() []string {
	out := make([]string, len(f.Values))
	for i, v := range f.Values {
		if f.label != nil {
			out[i] = f.label(v)
		} else {
			out[i] = formatNumber(v)
		}
	}
	return out
}

func (f *Family) contains(v float64) bool {
	for _, existing := range f.Values {
		if existing == v {
			return true
		}
	}
	return false
}

func (f *Family) clone() *Family {
	cp := *f
	cp.Values = append(make([]float64, 0, len(f.Values)), f.Values...)
	if f.Bounds != nil {
		b := *f.Bounds
		cp.Bounds = &b
	}
	return &cp
}

// Set maps family names to their state. It is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	families map[string]*Family
}

// NewSet builds a set from definitions. Every family starts enabled with its
// presets selected.
func NewSet(defs []Definition) *Set {
	s := &Set{families: make(map[string]*Family, len(defs))}
	for _, d := range defs {
		f := &Family{
			Name:    d.Name,
			Type:    d.Type,
			Enabled: true,
			Values:  make([]float64, 0, len(d.Presets)),
			presets: d.Presets,
			label:   d.Label,
		}
		if d.Bounds != nil {
			b := *d.Bounds
			f.Bounds = &b
		}
		for _, v := range d.Presets {
			if !f.contains(v) {
				f.Values = append(f.Values, v)
			}
		}
		s.families[d.Name] = f
	}
	return s
}

// NewImageSet returns the default image option set.
func NewImageSet() *Set { return NewSet(ImageFamilies()) }

// NewVideoSet returns the default video option set.
func NewVideoSet() *Set { return NewSet(VideoFamilies()) }

func unknown(name string) error {
	return validation.New(validation.ReasonUnknownFamily, name, "")
}

// Toggle enables or disables a family. Values are kept while disabled so
// re-enabling restores the earlier selection.
func (s *Set) Toggle(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[name]
	if !ok {
		return unknown(name)
	}
	f.Enabled = enabled
	return nil
}

// AddPreset appends a trusted value without range checks. Duplicates are ignored.
func (s *Set) AddPreset(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[name]
	if !ok {
		return unknown(name)
	}
	if !f.contains(v) {
		f.Values = append(f.Values, v)
	}
	return nil
}

// Select adds a value picked from a presentation. It must be one of the
// family's catalog presets, already selected, or a value AddCustom would
// accept; anything else fails with validation.ReasonNotAPreset.
func (s *Set) Select(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[name]
	if !ok {
		return unknown(name)
	}
	if f.contains(v) {
		return nil
	}
	if !f.offers(v) {
		return validation.New(validation.ReasonNotAPreset, name, formatNumber(v))
	}
	f.Values = append(f.Values, v)
	return nil
}

func (f *Family) offers(v float64) bool {
	for _, p := range f.presets {
		if p == v {
			return true
		}
	}
	if f.Bounds == nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if f.Type == TypeInt && v != math.Trunc(v) {
		return false
	}
	return f.Bounds.Contains(v)
}

// AddCustom parses raw in the family's numeric type, checks it against the
// family bounds and inserts it. Re-adding an existing value succeeds without
// creating a duplicate.
func (s *Set) AddCustom(name, raw string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[name]
	if !ok {
		return 0, unknown(name)
	}
	if f.Bounds == nil {
		return 0, fmt.Errorf("%s: %w", name, ErrPresetOnly)
	}

	v, err := parseValue(f.Type, raw)
	if err != nil {
		return 0, validation.New(validation.ReasonNotANumber, name, strconv.Quote(raw))
	}
	if !f.Bounds.Contains(v) {
		verr := validation.New(validation.ReasonOutOfRange, name,
			fmt.Sprintf("%s not in [%s, %s]", formatNumber(v), formatNumber(f.Bounds.Min), formatNumber(f.Bounds.Max)))
		verr.Min, verr.Max = f.Bounds.Min, f.Bounds.Max
		return 0, verr
	}
	if !f.contains(v) {
		f.Values = append(f.Values, v)
	}
	return v, nil
}

// Remove deselects a value. Removing an absent value is a no-op.
func (s *Set) Remove(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[name]
	if !ok {
		return unknown(name)
	}
	for i, existing := range f.Values {
		if existing == v {
			f.Values = append(f.Values[:i], f.Values[i+1:]...)
			break
		}
	}
	return nil
}

func parseValue(t ValueType, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	if t == TypeInt && v != math.Trunc(v) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// Family returns a copy of the named family.
func (s *Set) Family(name string) (*Family, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.families[name]
	if !ok {
		return nil, false
	}
	return f.clone(), true
}

// Names returns the family names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.families))
	for name := range s.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Families returns copies of every family, sorted by name.
func (s *Set) Families() []*Family {
	names := s.Names()
	out := make([]*Family, 0, len(names))
	for _, name := range names {
		if f, ok := s.Family(name); ok {
			out = append(out, f)
		}
	}
	return out
}

// Snapshot returns a deep copy that later edits to s cannot affect.
func (s *Set) Snapshot() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := &Set{families: make(map[string]*Family, len(s.families))}
	for name, f := range s.families {
		cp.families[name] = f.clone()
	}
	return cp
}
