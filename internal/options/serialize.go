package options

// Selection is the wire form of one family in a process request.
type Selection struct {
	Enabled bool      `json:"enabled"`
	Values  []float64 `json:"values"`
}

// Selected serialises the set for an image process request. Disabled
// families are sent with an empty value list.
func (s *Set) Selected() map[string]Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Selection, len(s.families))
	for name, f := range s.families {
		if f.Type == TypeToggle {
			continue
		}
		sel := Selection{Enabled: f.Enabled, Values: []float64{}}
		if f.Enabled {
			sel.Values = append(sel.Values, f.Values...)
		}
		out[name] = sel
	}
	return out
}

// VideoSelection is the wire form of the video option set.
type VideoSelection struct {
	TimeEnabled     bool      `json:"time_enabled"`
	IntervalEnabled bool      `json:"interval_enabled"`
	Intervals       []float64 `json:"intervals"`
}

// VideoSelected serialises the set for a video process request.
func (s *Set) VideoSelected() VideoSelection {
	sel := VideoSelection{Intervals: s.Intervals()}
	if f, ok := s.Family(Time); ok {
		sel.TimeEnabled = f.Enabled
	}
	if f, ok := s.Family(Interval); ok {
		sel.IntervalEnabled = f.Enabled
	}
	return sel
}

// Intervals returns the selected sampling intervals, or an empty list when
// the interval family is disabled or absent.
func (s *Set) Intervals() []float64 {
	f, ok := s.Family(Interval)
	if !ok || !f.Enabled {
		return []float64{}
	}
	return f.Values
}
