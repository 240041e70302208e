package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"we_listings/models"
)

const realtorBase = "https://www.realtor.ca"

var (
	nonNumeric = regexp.MustCompile(`[^0-9.,-]+`)
	decimalRun = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	whitespace = regexp.MustCompile(`\s+`)

	pricePrinter = message.NewPrinter(language.English)
)

// pathValue walks a dotted path through nested maps. A missing hop or a
// non-map intermediate resolves to nil.
func pathValue(data map[string]interface{}, path string) interface{} {
	var current interface{} = data
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		if current, ok = m[segment]; !ok {
			return nil
		}
	}
	return current
}

// firstValue returns the first path whose value is present and not an empty
// string. Zero is a value here; use firstTruthy where zero means absent.
func firstValue(data map[string]interface{}, paths ...string) interface{} {
	for _, path := range paths {
		if v := pathValue(data, path); v != nil && v != "" {
			return v
		}
	}
	return nil
}

// firstTruthy skips empties the way source payloads use them: nil, "",
// numeric zero, and false all mean "not set".
func firstTruthy(data map[string]interface{}, paths ...string) interface{} {
	for _, path := range paths {
		if v := pathValue(data, path); truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case bool:
		return t
	}
	return true
}

// firstMap returns the first path that resolves to a map.
func firstMap(data map[string]interface{}, paths ...string) map[string]interface{} {
	for _, path := range paths {
		if m, ok := pathValue(data, path).(map[string]interface{}); ok && m != nil {
			return m
		}
	}
	return nil
}

// CleanString flattens a raw value into display text. Strings lose NBSPs and
// repeated whitespace, finite numbers render without a trailing zero
// fraction, anything else counts as absent and comes back "".
func CleanString(v interface{}) string {
	switch t := v.(type) {
	case string:
		s := strings.ReplaceAll(t, " ", " ")
		return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	case float64:
		if !isFinite(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

// Number coerces a raw value to a float. Numeric types pass through when
// finite. Maps defer once to an amount/value/price sub-field. Strings are
// reduced to digits, separators, and sign, commas are dropped as thousands
// separators, and the first decimal run wins, so "$1,234.50" and "1234.50"
// coerce to the same value. Unparseable input is nil, never zero.
func Number(v interface{}) *float64 {
	return coerceNumber(v, true)
}

func coerceNumber(v interface{}, descend bool) *float64 {
	switch t := v.(type) {
	case float64:
		if !isFinite(t) {
			return nil
		}
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		f, err := t.Float64()
		if err != nil || !isFinite(f) {
			return nil
		}
		return &f
	case string:
		cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(t, ""), ",", "")
		match := decimalRun.FindString(cleaned)
		if match == "" {
			return nil
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil
		}
		return &f
	case map[string]interface{}:
		if !descend {
			return nil
		}
		for _, key := range []string{"amount", "value", "price"} {
			if sub, ok := t[key]; ok {
				return coerceNumber(sub, false)
			}
		}
	}
	return nil
}

// FormatPrice renders grouped whole dollars, "$450,000" style. Non-finite
// input degrades to "".
func FormatPrice(v float64) string {
	if !isFinite(v) {
		return ""
	}
	return pricePrinter.Sprintf("$%.0f", v)
}

// AbsoluteURL resolves a path against the realtor.ca origin. Absolute URLs
// pass through untouched.
func AbsoluteURL(v interface{}) string {
	cleaned := CleanString(v)
	if cleaned == "" {
		return ""
	}
	lower := strings.ToLower(cleaned)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "/") {
		return realtorBase + cleaned
	}
	return realtorBase + "/" + cleaned
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// keywordValue returns the value of the first detail row whose label mentions
// one of the keywords. The first matching row decides, parseable or not.
func keywordValue(details []models.Detail, keywords ...string) interface{} {
	for _, d := range details {
		label := strings.ToLower(d.Label)
		for _, kw := range keywords {
			if strings.Contains(label, kw) {
				if d.Value == "" {
					return nil
				}
				return d.Value
			}
		}
	}
	return nil
}

// feature resolves a numeric feature by candidate paths first, then by
// scanning detail labels.
func feature(raw map[string]interface{}, details []models.Detail, paths []string, keywords []string) *float64 {
	if f := Number(firstValue(raw, paths...)); f != nil {
		return f
	}
	return Number(keywordValue(details, keywords...))
}
