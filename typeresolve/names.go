package typeresolve

import (
	"strconv"
	"strings"
	"unicode"
)

// identifier converts free text into a PascalCase identifier, e.g. "on/off
// state" into "OnOffState". It returns "" for text without letters or digits.
func identifier(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	id := b.String()
	if id != "" && unicode.IsDigit([]rune(id)[0]) {
		id = "V" + id
	}
	return id
}

// uniqueName returns name, or name suffixed with the smallest number from 2 on
// that is not taken.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		if candidate := name + strconv.Itoa(i); !taken[candidate] {
			return candidate
		}
	}
}
