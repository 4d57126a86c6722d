package fat32

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{name: "first valid date", input: 1<<5 | 1, want: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "some date", input: 41<<9 | 6<<5 | 15, want: time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)},
		{name: "last valid date", input: 127<<9 | 12<<5 | 31, want: time.Date(2107, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "day 0", input: 1 << 5, want: time.Time{}},
		{name: "month 0", input: 1, want: time.Time{}},
		{name: "month 13 rolls over", input: 13<<5 | 1, want: time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDate(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{name: "midnight", input: 0, want: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "some time", input: 14<<11 | 30<<5 | 10, want: time.Date(1, 1, 1, 14, 30, 20, 0, time.UTC)},
		{name: "last valid time", input: 23<<11 | 59<<5 | 29, want: time.Date(1, 1, 1, 23, 59, 58, 0, time.UTC)},
		{name: "hour out of range", input: 31 << 11, want: time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTime(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDateTime_roundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "even second",
			input: time.Date(2021, 6, 15, 14, 30, 20, 0, time.UTC),
			want:  time.Date(2021, 6, 15, 14, 30, 20, 0, time.UTC),
		},
		{
			name:  "odd second and milliseconds",
			input: time.Date(2021, 6, 15, 14, 30, 21, 570*int(time.Millisecond), time.UTC),
			want:  time.Date(2021, 6, 15, 14, 30, 21, 570*int(time.Millisecond), time.UTC),
		},
		{
			name:  "before 1980 is clamped",
			input: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "other time zone",
			input: time.Date(2021, 6, 15, 16, 30, 20, 0, time.FixedZone("CEST", 2*60*60)),
			want:  time.Date(2021, 6, 15, 14, 30, 20, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDateTime(FormatDate(tt.input), FormatTime(tt.input), formatTenths(tt.input))
			if !got.Equal(tt.want) {
				t.Errorf("ParseDateTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
