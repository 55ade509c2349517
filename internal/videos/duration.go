package videos

import (
	"fmt"
	"regexp"
	"strconv"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISODuration converts an ISO-8601 duration such as "PT1H23M45S" to
// whole minutes, rounding 30 seconds or more up.
func ParseISODuration(raw string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("unrecognized duration %q", raw)
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))

	total := hours*60 + minutes
	if seconds >= 30 {
		total++
	}
	return total, nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
