// Package version implements the injectable version-string comparator the
// engine uses everywhere it must pick a "highest" version: auto-upgrade
// target selection, installed-instance discovery, and the downgrade check.
//
// The upstream contract sorts version strings lexically, which is correct
// for equal-width numeric dotted versions but wrong in general ("10.0" <
// "2.0" lexically). Both behaviours are available; callers choose.
package version

import (
	"strconv"
	"strings"
)

// Order compares two dotted version strings, returning <0, 0, or >0 as a<b,
// a==b, or a>b.
type Order interface {
	Compare(a, b string) int
}

// Lexical compares version strings byte-for-byte, matching the upstream
// contract exactly (byte-compatible but not numerically correct in general).
type Lexical struct{}

func (Lexical) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Numeric compares dotted version strings component-by-component as
// integers, falling back to lexical comparison for non-numeric components.
type Numeric struct{}

func (Numeric) Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		ai, aErr := strconv.Atoi(av)
		bi, bErr := strconv.Atoi(bv)
		if aErr == nil && bErr == nil {
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// Default is the comparator used when none is configured, preserving the
// upstream lexical contract.
var Default Order = Lexical{}

// Max returns the greatest of versions according to order, or "" if
// versions is empty.
func Max(order Order, versions []string) string {
	if order == nil {
		order = Default
	}
	if len(versions) == 0 {
		return ""
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if order.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}
