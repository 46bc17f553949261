package options

import (
	"fmt"
	"strconv"
)

// Family names.
const (
	Zoom         = "zoom"
	Rotation     = "rotation"
	Flip         = "flip"
	Blur         = "blur"
	Augmentation = "augmentation"

	Interval = "interval"
	Time     = "time"
)

// ValueType is the numeric domain of a family's values.
type ValueType string

const (
	TypeFloat    ValueType = "float"
	TypeInt      ValueType = "int"
	TypeDiscrete ValueType = "discrete" // fixed preset set, no custom values
	TypeToggle   ValueType = "toggle"   // enable flag only, carries no values
)

// Bounds is an inclusive range for custom values.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Definition describes a family before any user interaction.
type Definition struct {
	Name    string
	Type    ValueType
	Bounds  *Bounds // nil when custom values are not allowed
	Presets []float64
	Label   func(v float64) string
}

// Flip codes understood by the backend.
const (
	FlipVertical   = 0
	FlipHorizontal = 1
	FlipBoth       = -1
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ImageFamilies returns the definitions used on the image path.
func ImageFamilies() []Definition {
	return []Definition{
		{
			Name:    Zoom,
			Type:    TypeFloat,
			Bounds:  &Bounds{Min: 0.1, Max: 5.0},
			Presets: []float64{1.2, 1.5, 2.0},
			Label:   func(v float64) string { return formatNumber(v) + "x" },
		},
		{
			Name:    Rotation,
			Type:    TypeInt,
			Bounds:  &Bounds{Min: 0, Max: 360},
			Presets: []float64{30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330, 360},
			Label:   func(v float64) string { return formatNumber(v) + "°" },
		},
		{
			Name:    Flip,
			Type:    TypeDiscrete,
			Presets: []float64{FlipVertical, FlipHorizontal, FlipBoth},
			Label:   flipLabel,
		},
		{
			Name:    Blur,
			Type:    TypeInt,
			Bounds:  &Bounds{Min: 1, Max: 50},
			Presets: []float64{5, 15, 25},
			Label:   func(v float64) string { return fmt.Sprintf("%[1]sx%[1]s", formatNumber(v)) },
		},
		{
			Name:    Augmentation,
			Type:    TypeInt,
			Bounds:  &Bounds{Min: 1, Max: 50},
			Presets: []float64{5, 10, 15},
			Label:   func(v float64) string { return "sigma " + formatNumber(v) },
		},
	}
}

// VideoFamilies returns the definitions used on the video path. The time
// family is a bare switch; the range itself lives outside the option set.
func VideoFamilies() []Definition {
	return []Definition{
		{
			Name:    Interval,
			Type:    TypeFloat,
			Bounds:  &Bounds{Min: 0.1, Max: 10.0},
			Presets: []float64{0.5, 1, 2, 5},
			Label:   func(v float64) string { return formatNumber(v) + " s" },
		},
		{
			Name: Time,
			Type: TypeToggle,
		},
	}
}

func flipLabel(v float64) string {
	switch int(v) {
	case FlipVertical:
		return "vertical"
	case FlipHorizontal:
		return "horizontal"
	case FlipBoth:
		return "both"
	}
	return formatNumber(v)
}
