package cmd

import (
	"fmt"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// parseDay accepts YYYY-MM-DD, "today" or "tomorrow"; empty means today.
func parseDay(s string, now time.Time) (time.Time, error) {
	switch s {
	case "", "today":
		return now, nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	d, err := time.ParseInLocation(core.DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
