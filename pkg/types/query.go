package types

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSize is the number of results per page of a paginated search
const PageSize = 10

const pagePrefix = "[PAGE:"

// ParsePageDirective splits a trailing [PAGE:N] directive off term.
// ok is false when term carries no well-formed directive.
func ParsePageDirective(term string) (clean string, page int, ok bool) {
	i := strings.LastIndex(term, pagePrefix)
	if i < 0 || !strings.HasSuffix(term, "]") {
		return term, 0, false
	}
	n, err := strconv.Atoi(term[i+len(pagePrefix) : len(term)-1])
	if err != nil || n < 1 {
		return term, 0, false
	}
	return term[:i], n, true
}

// StripPageDirectives removes page directives from every term and drops terms
// that become empty. When several terms carry a directive the last one wins.
func StripPageDirectives(terms []string) (clean []string, page int, ok bool) {
	clean = make([]string, 0, len(terms))
	for _, t := range terms {
		c, p, found := ParsePageDirective(strings.TrimSpace(t))
		if found {
			page, ok = p, true
		}
		c = strings.TrimSpace(c)
		if c != "" {
			clean = append(clean, c)
		}
	}
	return clean, page, ok
}

// WithPage appends a [PAGE:N] directive to the last term
func WithPage(terms []string, page int) []string {
	if len(terms) == 0 || page < 1 {
		return terms
	}
	out := append([]string(nil), terms...)
	out[len(out)-1] = fmt.Sprintf("%s%s%d]", out[len(out)-1], pagePrefix, page)
	return out
}
