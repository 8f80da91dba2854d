package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MoneyRe matches monetary amounts as written, including magnitude
// suffixes ("$140K", "$69 million"). Extractors store the matched text
// verbatim as the snippet; normalization happens separately.
var MoneyRe = regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:thousand|million|billion|mm|[kmb]))?\b`)

// BareAmountRe matches numeric amounts written without a currency symbol,
// the way CRM systems export money fields ("Amount: 144000").
var BareAmountRe = regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\b`)

// DateRe matches dates as written: month-name forms, ISO dates, and
// numeric slash forms (which may be ambiguous).
var DateRe = regexp.MustCompile(`(?i)\b(?:(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})`)

var magnitudeSuffixes = []struct {
	suffix string
	mul    float64
}{
	{"billion", 1e9},
	{"million", 1e6},
	{"thousand", 1e3},
	{"mm", 1e6},
	{"b", 1e9},
	{"m", 1e6},
	{"k", 1e3},
}

// ParseMoney converts a raw monetary string ("$144,000", "$140K",
// "$69 million") into a numeric value. The input may carry surrounding
// words; the first money match inside it is used. Returns false when no
// amount is present.
func ParseMoney(raw string) (float64, bool) {
	m := MoneyRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	s := strings.ToLower(strings.TrimSpace(m))
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")

	mul := 1.0
	for _, mag := range magnitudeSuffixes {
		if strings.HasSuffix(s, mag.suffix) {
			mul = mag.mul
			s = strings.TrimSpace(strings.TrimSuffix(s, mag.suffix))
			break
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mul, true
}

var monthNameDateRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?`)

var isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

var slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)

var monthIndex = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseDate converts a raw date string into a time. The ambiguous return
// is true for numeric forms readable two ways (e.g. 03/04/2026); callers
// must then keep the raw text with a nil normalized value rather than
// guess. ok is false when no recognizable date is present or the form
// lacks a year.
func ParseDate(raw string) (t time.Time, ambiguous bool, ok bool) {
	if m := isoDateRe.FindStringSubmatch(raw); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), false, true
		}
		return time.Time{}, false, false
	}

	if m := monthNameDateRe.FindStringSubmatch(raw); m != nil {
		mo := monthIndex[strings.ToLower(strings.TrimSuffix(m[1], "."))]
		d, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			// Day-of-month without a year cannot be normalized.
			return time.Time{}, false, false
		}
		y, _ := strconv.Atoi(m[3])
		if d >= 1 && d <= 31 {
			return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), false, true
		}
		return time.Time{}, false, false
	}

	if m := slashDateRe.FindStringSubmatch(raw); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if y < 100 {
			y += 2000
		}
		// Both components could be a month: two readings, refuse to guess.
		if a <= 12 && b <= 12 && a != b {
			return time.Time{}, true, false
		}
		if a <= 12 && b >= 1 && b <= 31 {
			return time.Date(y, time.Month(a), b, 0, 0, 0, 0, time.UTC), false, true
		}
		// Day-first reading is the only valid one.
		if b <= 12 && a >= 1 && a <= 31 {
			return time.Date(y, time.Month(b), a, 0, 0, 0, 0, time.UTC), false, true
		}
		return time.Time{}, false, false
	}

	return time.Time{}, false, false
}
