package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// FinancialYear is an April-to-March fiscal year rendered as "YYYY-YYYY",
// e.g. "2025-2026". Expenditures derive it from their event date rather than
// trusting client input.
type FinancialYear string

var financialYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// FinancialYearOf returns the fiscal year containing t.
func FinancialYearOf(t time.Time) FinancialYear {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return FinancialYear(fmt.Sprintf("%d-%d", start, start+1))
}

// ParseFinancialYear validates the "YYYY-YYYY" form and that the years are
// consecutive.
func ParseFinancialYear(s string) (FinancialYear, error) {
	m := financialYearPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("financial year must be of the form YYYY-YYYY: %q", s)
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if to != from+1 {
		return "", fmt.Errorf("financial year must span consecutive years: %q", s)
	}
	return FinancialYear(s), nil
}

func (fy FinancialYear) String() string { return string(fy) }

// BudgetHead names a spending category within a department's budget, e.g.
// "laboratory-consumables". It is free-form but must be non-empty.
type BudgetHead string

func ParseBudgetHead(s string) (BudgetHead, error) {
	if s == "" {
		return "", fmt.Errorf("budget head must not be empty")
	}
	return BudgetHead(s), nil
}

func (h BudgetHead) String() string { return string(h) }
