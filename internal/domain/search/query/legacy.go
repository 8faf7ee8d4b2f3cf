package query

import (
	"net/url"
	"strings"
)

// legacyKeys maps retired repeated-value keys to their comma-joined canonical key.
var legacyKeys = map[string]string{
	"compareTerm": "compareTerms",
}

// RewriteLegacy folds legacy repeated keys into their canonical form, e.g.
// compareTerm=a&compareTerm=b becomes compareTerms=a,b. Values already under
// the canonical key come first. Reports whether anything was rewritten; v is not modified.
func RewriteLegacy(v url.Values) (url.Values, bool) {
	var out url.Values
	for legacy, canonical := range legacyKeys {
		vals, ok := v[legacy]
		if !ok {
			continue
		}
		if out == nil {
			out = cloneValues(v)
		}
		var parts []string
		for _, s := range out[canonical] {
			if s != "" {
				parts = append(parts, s)
			}
		}
		for _, s := range vals {
			if s != "" {
				parts = append(parts, s)
			}
		}
		delete(out, legacy)
		if len(parts) > 0 {
			out.Set(canonical, strings.Join(parts, ","))
		}
	}
	if out == nil {
		return v, false
	}
	return out, true
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
