package usecase

import (
	"regexp"
	"strings"
)

// unitRunPattern matches a run of words made of letters and periods on one
// line, optionally preceded by a quantity: "12 oz", "half gallon", "lb."
var unitRunPattern = regexp.MustCompile(`(?:(\d+(?:\.\d+)?)[ \t]*)?([A-Za-z.]{2,}(?:[ \t]+[A-Za-z.]{2,})*)`)

// UnitParser finds the unit of measure ("12 oz", "half gallon") in block text
type UnitParser struct {
	unitPattern *regexp.Regexp
	size        int
}

// NewUnitParser compiles the unit dictionary into a single case-insensitive
// pattern matching a whole entry. Entries may span several words ("fl oz").
func NewUnitParser(units []string) *UnitParser {
	entries := make([]string, 0, len(units))
	for _, u := range units {
		if u = strings.Join(strings.Fields(u), " "); u != "" {
			entries = append(entries, regexp.QuoteMeta(u))
		}
	}
	if len(entries) == 0 {
		return &UnitParser{}
	}

	pattern := `(?i)^\W*(?:` + strings.Join(entries, "|") + `)\W*$`
	return &UnitParser{unitPattern: regexp.MustCompile(pattern), size: len(entries)}
}

// Size returns the number of units in the dictionary
func (p *UnitParser) Size() int {
	return p.size
}

// Parse returns the first unit of measure found scanning the text left to
// right. Within a word run, consecutive units (or "half" leading them) are
// kept and prefixed with the quantity before them, if any. At each position
// the longest run of words forming a single unit wins.
func (p *UnitParser) Parse(text string) (string, bool) {
	for _, m := range unitRunPattern.FindAllStringSubmatch(text, -1) {
		quantity, words := m[1], strings.Fields(m[2])

		var matched []string
		for i := 0; i < len(words); {
			if i == 0 && strings.EqualFold(words[i], "half") {
				matched = append(matched, words[i])
				i++
				continue
			}
			n := p.longestUnit(words[i:])
			if n == 0 {
				break
			}
			matched = append(matched, words[i:i+n]...)
			i += n
		}
		if len(matched) == 0 {
			continue
		}

		if quantity != "" {
			matched = append([]string{quantity}, matched...)
		}
		return strings.Join(matched, " "), true
	}

	return "", false
}

// longestUnit returns how many leading words form one dictionary entry,
// or 0 when the first word starts none.
func (p *UnitParser) longestUnit(words []string) int {
	if p.unitPattern == nil {
		return 0
	}
	for n := len(words); n > 0; n-- {
		if p.unitPattern.MatchString(strings.Join(words[:n], " ")) {
			return n
		}
	}
	return 0
}
