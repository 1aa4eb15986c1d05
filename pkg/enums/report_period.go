package enums

import (
	"fmt"
	"strings"
)

// ReportPeriod selects the window used by sales reports.
type ReportPeriod string

const (
	ReportPeriodDaily   ReportPeriod = "daily"
	ReportPeriodMonthly ReportPeriod = "monthly"
	ReportPeriodYearly  ReportPeriod = "yearly"
)

var validReportPeriods = []ReportPeriod{
	ReportPeriodDaily,
	ReportPeriodMonthly,
	ReportPeriodYearly,
}

// String implements fmt.Stringer.
func (p ReportPeriod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ReportPeriod.
func (p ReportPeriod) IsValid() bool {
	for _, candidate := range validReportPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ReportPeriods returns the supported periods in display order.
func ReportPeriods() []ReportPeriod {
	out := make([]ReportPeriod, len(validReportPeriods))
	copy(out, validReportPeriods)
	return out
}

// ParseReportPeriod converts raw input into a ReportPeriod.
func ParseReportPeriod(value string) (ReportPeriod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validReportPeriods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report period %q", value)
}
