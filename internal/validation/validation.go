package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MinOpenYear is the earliest business-open year accepted at registration
	MinOpenYear = 2000

	// MaxAmount is the largest receipt amount accepted over the phone
	MaxAmount = 999999

	birthYearSpan  = 50
	maxSpeechRunes = 200
)

// Result is the outcome of a validator: pass/fail plus the message played
// back to the caller on failure.
type Result struct {
	Valid   bool
	Message string
}

func ok() Result {
	return Result{Valid: true}
}

func fail(message string) Result {
	return Result{Valid: false, Message: message}
}

// IsraeliID validates a 9 digit national identity number against its check digit.
func IsraeliID(tz string) Result {
	if len(tz) != 9 || !isDigits(tz) {
		return fail("ת.ז חייב להכיל 9 ספרות")
	}

	check, _ := IDCheckDigit(tz[:8])
	if check != int(tz[8]-'0') {
		return fail("ת.ז לא תקין")
	}

	return ok()
}

// IDCheckDigit computes the check digit for an 8 digit identity prefix.
// Weights alternate 1,2; a doubled digit of 10 or more is reduced by 9.
func IDCheckDigit(prefix string) (int, bool) {
	if len(prefix) != 8 || !isDigits(prefix) {
		return 0, false
	}

	total := 0
	for i := 0; i < len(prefix); i++ {
		weight := 1
		if i%2 == 1 {
			weight = 2
		}
		product := int(prefix[i]-'0') * weight
		if product >= 10 {
			product -= 9
		}
		total += product
	}

	return (10 - total%10) % 10, true
}

// Name accepts 2-50 Hebrew or Latin letters and spaces after trimming.
func Name(name string) Result {
	name = strings.TrimSpace(name)
	length := utf8.RuneCountInString(name)

	if length < 2 {
		return fail("שם קצר מדי")
	}
	if length > 50 {
		return fail("שם ארוך מדי")
	}

	for _, r := range name {
		switch {
		case r == ' ':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= 'א' && r <= 'ת':
		default:
			return fail("שם יכול להכיל רק אותיות ורווחים")
		}
	}

	return ok()
}

// Password accepts 4-8 digits.
func Password(password string) Result {
	if !isDigits(password) {
		return fail("סיסמה חייבת להכיל רק ספרות")
	}

	if len(password) < 4 || len(password) > 8 {
		return fail("סיסמה חייבת להיות באורך 4-8 ספרות")
	}

	return ok()
}

// Amount validates a receipt amount typed on the keypad.
func Amount(amount string) Result {
	_, res := ParseAmount(amount)
	return res
}

// ParseAmount is a strict numeric parser for receipt amounts. It accepts an
// integer ("150") or a fixed decimal whose fraction is zero ("150.00",
// "150*00", the star key being the PBX decimal point). Nothing else is
// interpreted.
func ParseAmount(amount string) (int64, Result) {
	amount = strings.TrimSpace(amount)

	whole, frac, hasFrac := cutDecimal(amount)
	if whole == "" || !isDigits(whole) {
		return 0, fail("סכום לא תקין")
	}
	if hasFrac {
		if frac == "" || len(frac) > 2 || !isDigits(frac) {
			return 0, fail("סכום לא תקין")
		}
		if strings.Trim(frac, "0") != "" {
			return 0, fail("סכום חייב להיות מספר שלם")
		}
	}

	// Seven digits is already past MaxAmount, longer input can't overflow below.
	if len(strings.TrimLeft(whole, "0")) > 7 {
		return 0, fail("סכום גבוה מדי")
	}

	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fail("סכום לא תקין")
	}
	if value <= 0 {
		return 0, fail("סכום חייב להיות חיובי")
	}
	if value > MaxAmount {
		return 0, fail("סכום גבוה מדי")
	}

	return value, ok()
}

// BirthYear accepts years within the last fifty years.
func BirthYear(year string, currentYear int) Result {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || !isDigits(strings.TrimSpace(year)) {
		return fail("שנת לידה לא תקינה")
	}

	if y < currentYear-birthYearSpan || y > currentYear {
		return fail("שנת לידה לא סבירה")
	}

	return ok()
}

// OpenYear accepts business-open years from MinOpenYear to the current year.
func OpenYear(year string, currentYear int) Result {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || !isDigits(strings.TrimSpace(year)) {
		return fail("השנה שנבחרה לא תקינה")
	}

	if y < MinOpenYear || y > currentYear {
		return fail("השנה שנבחרה לא תקינה")
	}

	return ok()
}

// Speech accepts any non-empty transcript; content is not interpreted.
func Speech(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return fail("לא נקלטה תשובה")
	}
	if utf8.RuneCountInString(text) > maxSpeechRunes {
		return fail("התשובה ארוכה מדי")
	}
	return ok()
}

func cutDecimal(s string) (whole, frac string, found bool) {
	if i := strings.IndexAny(s, ".*"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
