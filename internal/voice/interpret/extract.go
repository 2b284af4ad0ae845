package interpret

import "strings"

// normalizeDigits rewrites Devanagari numerals (U+0966 through U+096F) to
// their ASCII equivalents so parsing, length checks, and read-back all see a
// single digit alphabet. Hindi transcripts routinely carry ४५० for 450.
func normalizeDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '०' && r <= '९' {
			return '0' + (r - '०')
		}
		return r
	}, text)
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// FirstDigitRun returns the first run of consecutive digits in text, as
// ASCII, or "" when text contains no digits. "450 rupees and 5 pieces"
// yields "450"; "४५० rupees" also yields "450".
func FirstDigitRun(text string) string {
	text = normalizeDigits(text)
	start := -1
	for i, r := range text {
		if isASCIIDigit(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			return text[start:i]
		}
	}
	if start != -1 {
		return text[start:]
	}
	return ""
}

// Digits strips every non-digit rune from text, normalizing Devanagari
// numerals to ASCII. Used for phone and ID extraction where callers take
// the trailing N digits.
func Digits(text string) string {
	var b strings.Builder
	for _, r := range normalizeDigits(text) {
		if isASCIIDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// digitRuns returns every maximal run of digits in text, in order, as ASCII.
func digitRuns(text string) []string {
	var runs []string
	rest := normalizeDigits(text)
	for {
		run := FirstDigitRun(rest)
		if run == "" {
			return runs
		}
		runs = append(runs, run)
		idx := strings.Index(rest, run)
		rest = rest[idx+len(run):]
	}
}

// ExtractProductDetails parses a free-text product description into
// structured fields. The heuristic is deliberately mechanical so results are
// reproducible: the name is the text before the first comma (or the whole
// text when it carries no digits), the first digit run is the price, the
// second is the quantity, and unit/category come from keyword vocabulary.
// Fields that cannot be determined are left at their zero value; callers
// re-prompt for them individually.
func (k *KeywordInterpreter) ExtractProductDetails(description string) ProductDetails {
	d := ProductDetails{Description: strings.TrimSpace(description)}
	if d.Description == "" {
		return d
	}

	name := d.Description
	if idx := strings.Index(name, ","); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	// A leading segment that is purely numeric, in either digit alphabet,
	// is no name at all.
	if name != "" && Digits(name) != normalizeDigits(name) {
		d.Name = name
	}

	runs := digitRuns(d.Description)
	if len(runs) > 0 {
		d.Price = atoiSafe(runs[0])
	}
	if len(runs) > 1 {
		d.Quantity = atoiSafe(runs[1])
	}

	if unit, ok := k.MatchUnit(d.Description); ok {
		d.Unit = unit
	}
	if cat, ok := k.MatchCategory(d.Description); ok {
		d.Category = cat
	}
	return d
}

// atoiSafe parses a digit run. Runs longer than 9 characters are not
// plausible prices or quantities and are truncated to keep the arithmetic
// in int range.
func atoiSafe(digits string) int {
	if len(digits) > 9 {
		digits = digits[:9]
	}
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	return n
}
