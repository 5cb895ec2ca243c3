package thingmodel

import (
	"encoding/json"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// substitute replaces "{{NAME}}" placeholders of a raw document with the
// JSON-escaped values of the given map.
func substitute(data []byte, values map[string]string) []byte {
	if len(values) == 0 {
		return data
	}
	return placeholderPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(placeholderPattern.FindSubmatch(match)[1])
		v, ok := values[name]
		if !ok {
			return match
		}
		quoted, _ := json.Marshal(v) // Marshalling a string never fails.
		return quoted[1 : len(quoted)-1]
	})
}
