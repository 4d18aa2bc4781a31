package enums

import (
	"fmt"
	"strings"
)

// ReportWindow is the rolling range covered by a flow report.
type ReportWindow string

const (
	ReportWindowWeek  ReportWindow = "week"
	ReportWindowMonth ReportWindow = "month"
)

var validReportWindows = []ReportWindow{
	ReportWindowWeek,
	ReportWindowMonth,
}

// Days returns how many calendar days the window spans, today included.
func (w ReportWindow) Days() int {
	switch w {
	case ReportWindowWeek:
		return 7
	case ReportWindowMonth:
		return 30
	}
	return 0
}

// String implements fmt.Stringer.
func (w ReportWindow) String() string {
	return string(w)
}

// IsValid reports whether the value is a known ReportWindow.
func (w ReportWindow) IsValid() bool {
	for _, candidate := range validReportWindows {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseReportWindow converts raw input into a ReportWindow.
func ParseReportWindow(value string) (ReportWindow, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validReportWindows {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report window %q", value)
}
