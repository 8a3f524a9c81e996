package basecamp

import "encoding/json"

// Page is the pagination envelope every list endpoint responds with.
type Page struct {
	Results []json.RawMessage `json:"results"`
	Next    *string           `json:"next"`
}

// NextUrl returns the cursor of the following page, an empty string counts as absent.
func (p Page) NextUrl() (string, bool) {
	if p.Next == nil || *p.Next == "" {
		return "", false
	}
	return *p.Next, true
}

// DecodeResults decodes every result of pages into T, in page order. Results that do
// not decode are skipped and counted.
func DecodeResults[T any](pages []Page) (out []T, skipped int) {
	for _, p := range pages {
		for _, r := range p.Results {
			var v T
			err := json.Unmarshal(r, &v)
			if err != nil {
				skipped++
				continue
			}
			out = append(out, v)
		}
	}
	return out, skipped
}
