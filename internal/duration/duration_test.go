package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"single hour", "1 hour", Value{Kind: Hours, Hours: 1}},
		{"plural hours", "6 hours", Value{Kind: Hours, Hours: 6}},
		{"single day", "1 day", Value{Kind: Days, Days: 1}},
		{"plural days", "3 days", Value{Kind: Days, Days: 3}},
		{"range no spaces", "2-4 days", Value{Kind: DayRange, RangeStart: 2, RangeEnd: 4}},
		{"range with spaces", "2 - 4 days", Value{Kind: DayRange, RangeStart: 2, RangeEnd: 4}},
		{"case insensitive", "3 DAYS", Value{Kind: Days, Days: 3}},
		{"leading and trailing space", "  5 hours  ", Value{Kind: Hours, Hours: 5}},
		{"empty", "", Value{}},
		{"garbage", "about a week", Value{}},
		{"zero value", "0 days", Value{}},
		{"degenerate range", "4-4 days", Value{}},
		{"inverted range", "5-2 days", Value{}},
		{"range with singular unit", "2-4 day", Value{}},
		{"trailing junk", "3 days approx", Value{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.input))
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input Value
		want  string
	}{
		{"one hour singular", Value{Kind: Hours, Hours: 1}, "1 hour"},
		{"many hours plural", Value{Kind: Hours, Hours: 8}, "8 hours"},
		{"one day singular", Value{Kind: Days, Days: 1}, "1 day"},
		{"many days plural", Value{Kind: Days, Days: 7}, "7 days"},
		{"range", Value{Kind: DayRange, RangeStart: 3, RangeEnd: 5}, "3-5 days"},
		{"unset", Value{}, ""},
		{"missing hours", Value{Kind: Hours}, ""},
		{"negative days", Value{Kind: Days, Days: -2}, ""},
		{"range start not below end", Value{Kind: DayRange, RangeStart: 5, RangeEnd: 5}, ""},
		{"range missing start", Value{Kind: DayRange, RangeEnd: 4}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.input))
		})
	}
}

// Encoding the decode of a well-formed canonical string must give back an
// equivalent canonical string; decoding a successful encode must give back
// the original value exactly.
func TestRoundTrip(t *testing.T) {
	canonical := []string{"1 hour", "12 hours", "1 day", "14 days", "2-4 days", "3-10 days"}
	for _, s := range canonical {
		t.Run(s, func(t *testing.T) {
			v := Decode(s)
			assert.NotEqual(t, Unset, v.Kind)
			assert.Equal(t, s, Encode(v))
		})
	}

	values := []Value{
		{Kind: Hours, Hours: 1},
		{Kind: Hours, Hours: 36},
		{Kind: Days, Days: 2},
		{Kind: DayRange, RangeStart: 1, RangeEnd: 9},
	}
	for _, v := range values {
		encoded := Encode(v)
		assert.NotEmpty(t, encoded)
		assert.Equal(t, v, Decode(encoded))
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	inputs := []string{"", " ", "-", "days", "1", "1-", "-4 days", "999999999999999999999 days", "2-4", "hours 3"}
	for _, s := range inputs {
		assert.NotPanics(t, func() { Decode(s) })
	}
}
