// Package since formats and parses the compact elapsed-time strings used
// by the list command's "Since" column: "[<d>d][<h>h][<m>m]<s>s", units
// above the highest nonzero one omitted entirely and every unit below
// the first printed one zero-padded to two digits.
package since

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format renders d (truncated to whole seconds) in the compact form.
// Negative durations are clamped to zero.
func Format(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	minutes := total / 60
	seconds := total % 60

	var b strings.Builder
	started := false
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		started = true
	}
	if hours > 0 || started {
		if started {
			fmt.Fprintf(&b, "%02dh", hours)
		} else {
			fmt.Fprintf(&b, "%dh", hours)
			started = true
		}
	}
	if minutes > 0 || started {
		if started {
			fmt.Fprintf(&b, "%02dm", minutes)
		} else {
			fmt.Fprintf(&b, "%dm", minutes)
			started = true
		}
	}
	if started {
		fmt.Fprintf(&b, "%02ds", seconds)
	} else {
		fmt.Fprintf(&b, "%ds", seconds)
	}
	return b.String()
}

var pattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(\d+)s$`)

// Parse recovers the whole-second duration encoded by Format. It is the
// exact inverse: for every non-negative duration truncated to seconds,
// Parse(Format(d)) == d.
func Parse(s string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("since: invalid format %q", s)
	}
	var total int64
	if m[1] != "" {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, err
		}
		total += v * 86400
	}
	if m[2] != "" {
		v, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, err
		}
		total += v * 3600
	}
	if m[3] != "" {
		v, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return 0, err
		}
		total += v * 60
	}
	v, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return 0, err
	}
	total += v
	return time.Duration(total) * time.Second, nil
}
