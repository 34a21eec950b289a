package nlsql

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a resolved calendar interval. Absolute marks ranges built
// from explicit months or years, which take precedence over relative
// expressions when a question carries both.
type DateRange struct {
	From     time.Time
	To       time.Time
	Absolute bool
}

const monthAlt = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

const yearPat = `(19\d{2}|20\d{2})`

var (
	reMonthRange = regexp.MustCompile(`\b(` + monthAlt + `)\s+` + yearPat + `\s*(?:to|until|through|and|-)\s*(` + monthAlt + `)\s+` + yearPat + `\b`)
	reYearRange  = regexp.MustCompile(`\b` + yearPat + `\s*(?:to|until|through|and|-)\s*` + yearPat + `\b`)
	reSinceMonth = regexp.MustCompile(`\bsince\s+(` + monthAlt + `)\s+` + yearPat + `\b`)
	reSinceYear  = regexp.MustCompile(`\bsince\s+` + yearPat + `\b`)
	reMonthYear  = regexp.MustCompile(`\b(` + monthAlt + `)\s+` + yearPat + `\b`)
	reBareYear   = regexp.MustCompile(`\b` + yearPat + `\b`)

	reLastNMonths = regexp.MustCompile(`\b(?:last|past)\s+(\d{1,3})\s+months?\b`)
	reLastNYears  = regexp.MustCompile(`\b(?:last|past)\s+(\d{1,2})\s+years?\b`)
	reLastYear    = regexp.MustCompile(`\b(?:last|past)\s+year\b`)
	reThisYear    = regexp.MustCompile(`\b(?:this\s+year|year\s+to\s+date|ytd)\b`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func parseMonth(name string) time.Month {
	return monthIndex[name[:3]]
}

func parseYear(s string) int {
	y, _ := strconv.Atoi(s)
	return y
}

func firstOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(year int, month time.Month) time.Time {
	return firstOfMonth(year, month).AddDate(0, 1, -1)
}

// ExtractDateRange finds the first date expression in the normalized
// question. Absolute forms (named months, calendar years) are tried before
// relative forms ("last 6 months", "this year"), so a question carrying
// both resolves to the absolute one. Relative forms anchor on now.
func ExtractDateRange(norm string, now time.Time) (DateRange, bool) {
	if m := reMonthRange.FindStringSubmatch(norm); m != nil {
		from := firstOfMonth(parseYear(m[2]), parseMonth(m[1]))
		to := endOfMonth(parseYear(m[4]), parseMonth(m[3]))
		return orderRange(from, to, true), true
	}
	if m := reYearRange.FindStringSubmatch(norm); m != nil {
		from := firstOfMonth(parseYear(m[1]), time.January)
		to := endOfMonth(parseYear(m[2]), time.December)
		return orderRange(from, to, true), true
	}
	if m := reSinceMonth.FindStringSubmatch(norm); m != nil {
		from := firstOfMonth(parseYear(m[2]), parseMonth(m[1]))
		return orderRange(from, today(now), true), true
	}
	if m := reSinceYear.FindStringSubmatch(norm); m != nil {
		from := firstOfMonth(parseYear(m[1]), time.January)
		return orderRange(from, today(now), true), true
	}
	if m := reMonthYear.FindStringSubmatch(norm); m != nil {
		y, mo := parseYear(m[2]), parseMonth(m[1])
		return DateRange{From: firstOfMonth(y, mo), To: endOfMonth(y, mo), Absolute: true}, true
	}
	// A bare year inside "top 2023 ..." style phrasing is still treated as
	// a calendar year; the pattern excludes digits that are part of longer
	// numbers via the word boundary.
	if m := reBareYear.FindStringSubmatch(norm); m != nil && !partOfCode(norm, m[1]) {
		y := parseYear(m[1])
		return DateRange{From: firstOfMonth(y, time.January), To: endOfMonth(y, time.December), Absolute: true}, true
	}

	if m := reLastNMonths.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			end := today(now)
			return DateRange{From: end.AddDate(0, -n, 0), To: end}, true
		}
	}
	if m := reLastNYears.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			end := today(now)
			return DateRange{From: end.AddDate(-n, 0, 0), To: end}, true
		}
	}
	if reLastYear.MatchString(norm) {
		end := today(now)
		return DateRange{From: end.AddDate(-1, 0, 0), To: end}, true
	}
	if reThisYear.MatchString(norm) {
		end := today(now)
		return DateRange{From: firstOfMonth(end.Year(), time.January), To: end}, true
	}

	return DateRange{}, false
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func orderRange(from, to time.Time, absolute bool) DateRange {
	if to.Before(from) {
		from, to = to, from
	}
	return DateRange{From: from, To: to, Absolute: absolute}
}

// partOfCode guards the bare-year fallback against SSIC-code contexts
// such as "ssic 2011", which name an industry code rather than a year
func partOfCode(norm, year string) bool {
	idx := strings.Index(norm, year)
	if idx < 0 {
		return false
	}
	prefix := strings.TrimRight(norm[:idx], " ")
	return strings.HasSuffix(prefix, "ssic") || strings.HasSuffix(prefix, "code")
}
