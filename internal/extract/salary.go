package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Salary pattern order is fixed: LPA range, single LPA, "upto N LPA",
// monthly-k range, single monthly-k, rupee range, single rupee. Everything
// converts to a monthly INR integer.
var (
	lpaRangeRe    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:-|to)\s*(\d+(?:\.\d+)?)\s*lpa`)
	lpaSingleRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*lpa`)
	lpaUptoRe     = regexp.MustCompile(`(?i)up\s*to\s*(\d+(?:\.\d+)?)\s*lpa`)
	kRangeRe      = regexp.MustCompile(`(?i)(\d{1,3})\s*k\s*(?:-|to)\s*(\d{1,3})\s*k`)
	kSingleRe     = regexp.MustCompile(`(?i)(\d{1,3})\s*k\b`)
	rupeeRangeRe  = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr)\s*([\d,]{4,8})\s*(?:-|to)\s*(?:₹|rs\.?|inr)?\s*([\d,]{4,8})`)
	rupeeSingleRe = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr)\s*([\d,]{4,8})`)
)

// Salary returns the monthly INR figure, 0 when nothing parses. Ranges use
// the upper bound.
func Salary(section string) int64 {
	if m := lpaUptoRe.FindStringSubmatch(section); m != nil {
		return lpaToMonthly(m[1])
	}
	if m := lpaRangeRe.FindStringSubmatch(section); m != nil {
		return lpaToMonthly(m[2])
	}
	if m := lpaSingleRe.FindStringSubmatch(section); m != nil {
		return lpaToMonthly(m[1])
	}
	if m := kRangeRe.FindStringSubmatch(section); m != nil {
		if v := kToMonthly(m[2]); v > 0 {
			return v
		}
	}
	if m := kSingleRe.FindStringSubmatch(section); m != nil {
		if v := kToMonthly(m[1]); v > 0 {
			return v
		}
	}
	if m := rupeeRangeRe.FindStringSubmatch(section); m != nil {
		if v := rupeeMonthly(m[2]); v > 0 {
			return v
		}
	}
	if m := rupeeSingleRe.FindStringSubmatch(section); m != nil {
		if v := rupeeMonthly(m[1]); v > 0 {
			return v
		}
	}
	return 0
}

// lpaToMonthly converts lakhs-per-annum: annual = lpa*100000, monthly =
// annual/12.
func lpaToMonthly(s string) int64 {
	lpa, err := strconv.ParseFloat(s, 64)
	if err != nil || lpa <= 0 || lpa > 500 {
		return 0
	}
	return int64(lpa * 100000 / 12)
}

// kToMonthly accepts single k-values only in 5..99.
func kToMonthly(s string) int64 {
	k, err := strconv.Atoi(s)
	if err != nil || k < 5 || k > 99 {
		return 0
	}
	return int64(k) * 1000
}

// rupeeMonthly accepts plain rupee figures only in 10000..199999.
func rupeeMonthly(s string) int64 {
	v, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil || v < 10000 || v > 199999 {
		return 0
	}
	return v
}
