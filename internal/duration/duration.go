// Package duration maps the canonical tour duration string ("3 hours",
// "5 days", "2-4 days") to and from an editable structured value.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind discriminates the duration variants.
type Kind int

const (
	Unset Kind = iota
	Hours
	Days
	DayRange
)

// Value is the editable representation of a duration. Only the fields for
// the active Kind are meaningful.
type Value struct {
	Kind       Kind `json:"kind"`
	Hours      int  `json:"hours,omitempty"`
	Days       int  `json:"days,omitempty"`
	RangeStart int  `json:"rangeStart,omitempty"`
	RangeEnd   int  `json:"rangeEnd,omitempty"`
}

var (
	hoursRe = regexp.MustCompile(`(?i)^\s*(\d+)\s+hours?\s*$`)
	daysRe  = regexp.MustCompile(`(?i)^\s*(\d+)\s+days?\s*$`)
	rangeRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*-\s*(\d+)\s+days\s*$`)
)

// Decode parses a canonical duration string. It never fails: empty input or
// input matching none of the grammar variants decodes to an Unset value, so
// legacy or externally edited data does not block the edit session from
// opening.
func Decode(s string) Value {
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if start > 0 && start < end {
			return Value{Kind: DayRange, RangeStart: start, RangeEnd: end}
		}
		return Value{}
	}
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return Value{Kind: Hours, Hours: n}
		}
		return Value{}
	}
	if m := daysRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return Value{Kind: Days, Days: n}
		}
		return Value{}
	}
	return Value{}
}

// Encode serializes a Value to its canonical string. It is pure and total:
// a Value whose numbers are missing, non-positive, or (for a range) not
// strictly increasing encodes to "", which the save gate reports as a
// missing Duration field. Pluralization is computed here, never stored.
func Encode(v Value) string {
	switch v.Kind {
	case Hours:
		if v.Hours <= 0 {
			return ""
		}
		return fmt.Sprintf("%d %s", v.Hours, pluralize("hour", v.Hours))
	case Days:
		if v.Days <= 0 {
			return ""
		}
		return fmt.Sprintf("%d %s", v.Days, pluralize("day", v.Days))
	case DayRange:
		if v.RangeStart <= 0 || v.RangeStart >= v.RangeEnd {
			return ""
		}
		return fmt.Sprintf("%d-%d days", v.RangeStart, v.RangeEnd)
	default:
		return ""
	}
}

func pluralize(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
