package extract

import (
	"strings"
	"unicode"
)

// NormalizePhone turns the href of the patient's phone link into the number
// sent downstream: the first "tel:" prefix is removed and all whitespace is
// stripped. An empty href yields "".
func NormalizePhone(href string) string {
	href = strings.Replace(href, "tel:", "", 1)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, href)
}
