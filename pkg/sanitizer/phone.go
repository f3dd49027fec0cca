package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Regions tried in order when a guest phone arrives without a country prefix.
var supportedRegions = []string{
	"US",
	"IL",
}

// NormalizePhone parses a phone number and formats it as E.164. Numbers that
// already carry a + prefix are parsed region-less; bare national numbers are
// tried against the supported regions. Returns "" for anything unparseable.
func NormalizePhone(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if strings.HasPrefix(input, "+") {
		if num, err := phonenumbers.Parse(input, ""); err == nil && phonenumbers.IsValidNumber(num) {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
		return ""
	}

	for _, region := range supportedRegions {
		num, err := phonenumbers.Parse(input, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(num) {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	return ""
}
