package scan

import (
	"sort"
	"strings"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// Scanner selects the definitions of a catalog that live under given packages.
type Scanner struct {
	catalog  *Catalog
	prefixes []string
}

// NewScanner scans catalog for types in the packages named by prefixes and
// their sub packages. Without prefixes every definition is selected.
func NewScanner(catalog *Catalog, prefixes ...string) *Scanner {
	if catalog == nil {
		catalog = Default
	}
	return &Scanner{catalog: catalog, prefixes: prefixes}
}

// Scan returns matching definitions ordered by package, then type name, then name.
func (s *Scanner) Scan() []Definition {
	var out []Definition
	for _, d := range s.catalog.Definitions() {
		if s.matches(d.Package()) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Package() != b.Package() {
			return a.Package() < b.Package()
		}
		an, bn := ireflect.TypeName(a.Type), ireflect.TypeName(b.Type)
		if an != bn {
			return an < bn
		}
		return a.Name < b.Name
	})
	return out
}

func (s *Scanner) matches(pkg string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		p = strings.TrimSuffix(p, "/")
		if pkg == p || strings.HasPrefix(pkg, p+"/") {
			return true
		}
	}
	return false
}
