// Package timeline handles the video time range and the live estimate of how
// many frames a range will produce.
package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gwlsn/augmentor/internal/validation"
)

// Subjects of the InvalidTimeRange errors returned by Validate.
const (
	SubjectRange = "time_range" // negative values
	SubjectStart = "start_time" // start not before end
	SubjectEnd   = "end_time"   // end past the media duration
)

// Range is a span of a video in whole seconds.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Duration is End-Start; it may be zero or negative while the user is editing.
func (r Range) Duration() int {
	return r.End - r.Start
}

// Validate enforces start < end <= mediaSeconds.
func (r Range) Validate(mediaSeconds int) error {
	if r.Start < 0 || r.End < 0 {
		return validation.New(validation.ReasonInvalidTimeRange, SubjectRange, "negative time")
	}
	if r.Start >= r.End {
		return validation.New(validation.ReasonInvalidTimeRange, SubjectStart,
			fmt.Sprintf("start %s must be before end %s", Clock(r.Start), Clock(r.End)))
	}
	if r.End > mediaSeconds {
		err := validation.New(validation.ReasonInvalidTimeRange, SubjectEnd,
			fmt.Sprintf("end %s exceeds video length %s", Clock(r.End), Clock(mediaSeconds)))
		err.Max = float64(mediaSeconds)
		return err
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("%s - %s (%d s)", Clock(r.Start), Clock(r.End), r.Duration())
}

// Inputs mirrors the four minute/second fields of the time picker.
type Inputs struct {
	StartMinutes string `json:"start_minutes"`
	StartSeconds string `json:"start_seconds"`
	EndMinutes   string `json:"end_minutes"`
	EndSeconds   string `json:"end_seconds"`
}

// Range converts the raw fields. Blank or unparsable fields count as zero.
func (in Inputs) Range() Range {
	return Range{
		Start: field(in.StartMinutes)*60 + field(in.StartSeconds),
		End:   field(in.EndMinutes)*60 + field(in.EndSeconds),
	}
}

// InputsFor splits whole seconds back into minute/second fields, used to
// seed the end fields from the media duration.
func InputsFor(start, end int) Inputs {
	return Inputs{
		StartMinutes: strconv.Itoa(start / 60),
		StartSeconds: strconv.Itoa(start % 60),
		EndMinutes:   strconv.Itoa(end / 60),
		EndSeconds:   strconv.Itoa(end % 60),
	}
}

// field parses the leading integer of s.
func field(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[0] == '-' || s[0] == '+')) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Clock formats seconds as m:ss.
func Clock(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, seconds/60, seconds%60)
}

// Estimate returns the expected number of extracted frames: the sum over all
// intervals of floor(duration / interval). A non-positive duration yields 0,
// and non-positive intervals contribute nothing. The sum saturates at
// math.MaxInt.
func Estimate(r Range, intervals []float64) int {
	d := r.Duration()
	if d <= 0 {
		return 0
	}
	total := 0
	for _, iv := range intervals {
		if iv <= 0 || math.IsNaN(iv) {
			continue
		}
		q := math.Floor(float64(d) / iv)
		if math.IsInf(q, 0) || q >= float64(math.MaxInt-total) {
			return math.MaxInt
		}
		total += int(q)
	}
	return total
}
