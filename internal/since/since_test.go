package since

import (
	"testing"
	"time"
)

func TestFormatExamples(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{37 * time.Second, "37s"},
		{5*time.Minute + 2*time.Second, "5m02s"},
		{2*time.Hour + 5*time.Minute + 30*time.Second, "2h05m30s"},
		{24*time.Hour + 3*time.Second, "1d00h00m03s"},
		{3*24*time.Hour + 12*time.Hour + 45*time.Minute + 37*time.Second, "3d12h45m37s"},
		{0, "0s"},
	}
	for _, c := range cases {
		if got := Format(c.d); got != c.want {
			t.Errorf("Format(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "s", "5m", "5", "m5s"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error", s)
		}
	}
}

func TestRoundTripOverManySeconds(t *testing.T) {
	samples := []int64{0, 1, 37, 59, 60, 61, 3599, 3600, 3661, 86399, 86400, 86403, 302737}
	for _, s := range samples {
		d := time.Duration(s) * time.Second
		got, err := Parse(Format(d))
		if err != nil {
			t.Fatalf("Parse(Format(%ds)): %v", s, err)
		}
		if got != d {
			t.Errorf("round trip %ds: got %v, want %v", s, got, d)
		}
	}
}
