// Package countrycode splits stored phone numbers into a dial code and
// a local number for editing, and joins them back for submission.
package countrycode

import (
	"regexp"
	"strings"
)

// DefaultDial is the dial code assumed when nothing matches.
const DefaultDial = "+58"

// Local-number digit limits. The default country keeps a possible
// leading zero, hence 11 instead of 10.
const (
	maxLocalDigitsDefault = 11
	maxLocalDigits        = 15
)

// Code pairs a dial code with its country name.
type Code struct {
	Dial    string
	Country string
}

// Codes is the supported dial-code table, mirrored from the booking
// backend's country list.
var Codes = []Code{
	{"+58", "Venezuela"},
	{"+1", "USA/Canada"},
	{"+52", "Mexico"},
	{"+57", "Colombia"},
	{"+51", "Peru"},
	{"+56", "Chile"},
	{"+54", "Argentina"},
	{"+55", "Brazil"},
	{"+34", "Spain"},
	{"+44", "UK"},
	{"+33", "France"},
	{"+49", "Germany"},
	{"+39", "Italy"},
	{"+86", "China"},
	{"+91", "India"},
	{"+81", "Japan"},
	{"+82", "South Korea"},
	{"+61", "Australia"},
	{"+27", "South Africa"},
	{"+971", "UAE"},
	{"+31", "Netherlands"},
	{"+32", "Belgium"},
	{"+47", "Norway"},
	{"+45", "Denmark"},
	{"+46", "Sweden"},
	{"+41", "Switzerland"},
	{"+43", "Austria"},
	{"+48", "Poland"},
	{"+420", "Czech Republic"},
	{"+421", "Slovakia"},
	{"+36", "Hungary"},
	{"+40", "Romania"},
	{"+30", "Greece"},
	{"+90", "Turkey"},
	{"+973", "Bahrain"},
	{"+974", "Qatar"},
	{"+965", "Kuwait"},
	{"+966", "Saudi Arabia"},
	{"+968", "Oman"},
	{"+92", "Pakistan"},
	{"+880", "Bangladesh"},
	{"+94", "Sri Lanka"},
	{"+66", "Thailand"},
	{"+65", "Singapore"},
	{"+60", "Malaysia"},
	{"+62", "Indonesia"},
	{"+63", "Philippines"},
	{"+64", "New Zealand"},
	{"+353", "Ireland"},
	{"+370", "Lithuania"},
	{"+371", "Latvia"},
	{"+372", "Estonia"},
	{"+373", "Moldova"},
	{"+375", "Belarus"},
	{"+380", "Ukraine"},
	{"+7", "Russia"},
	{"+98", "Iran"},
	{"+20", "Egypt"},
	{"+212", "Morocco"},
	{"+234", "Nigeria"},
	{"+254", "Kenya"},
	{"+255", "Tanzania"},
	{"+251", "Ethiopia"},
}

var (
	genericDialRe = regexp.MustCompile(`^(\+\d{1,3})`)
	nonDigitRe    = regexp.MustCompile(`\D`)
)

// Detect splits a stored phone number into a dial code and the local
// remainder. The longest matching dial code wins so a short code never
// falsely claims a longer one. Falls back to a generic +NNN prefix and
// finally to DefaultDial.
func Detect(phone string) (dial, local string) {
	if phone == "" {
		return DefaultDial, ""
	}

	best := ""
	for _, c := range Codes {
		if strings.HasPrefix(phone, c.Dial) && len(c.Dial) > len(best) {
			best = c.Dial
		}
	}
	if best != "" {
		return best, strings.TrimSpace(phone[len(best):])
	}

	if m := genericDialRe.FindString(phone); m != "" {
		return m, strings.TrimSpace(phone[len(m):])
	}

	return DefaultDial, strings.TrimSpace(phone)
}

// SanitizeLocal strips non-digit characters and caps the length per
// country without discarding a leading zero.
func SanitizeLocal(local, dial string) string {
	digits := nonDigitRe.ReplaceAllString(local, "")
	limit := maxLocalDigits
	if dial == DefaultDial {
		limit = maxLocalDigitsDefault
	}
	if len(digits) > limit {
		digits = digits[:limit]
	}
	return digits
}

// ValidLocal reports whether the local digit count is acceptable for
// the dial code: 10-11 digits for the default country, 7-15 otherwise.
func ValidLocal(local, dial string) bool {
	digits := nonDigitRe.ReplaceAllString(local, "")
	if digits == "" {
		return false
	}
	if dial == DefaultDial {
		return len(digits) >= 10 && len(digits) <= 11
	}
	return len(digits) >= 7 && len(digits) <= 15
}

// Join produces the full phone number with dial code for submission.
func Join(dial, local string) string {
	if strings.TrimSpace(local) == "" {
		return ""
	}
	return dial + local
}
