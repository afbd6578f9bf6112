package bunker_test

import "encoding/json"

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
