// Package registrypath maps crate names to their canonical sub-path inside
// a Cargo index repository.
package registrypath

import (
	"fmt"
	"strings"
)

// ErrInvalidName is returned by Resolve for an empty crate name.
type ErrInvalidName struct {
	Name string
}

func (e *ErrInvalidName) Error() string {
	return fmt.Sprintf("invalid crate name %q", e.Name)
}

// Resolve returns the relative path of a crate's index file under the
// index directory, following the Cargo sparse/git index layout:
//
//	len(n) == 1:  1/<n>
//	len(n) == 2:  2/<n>
//	len(n) == 3:  3/<n[0]>/<n>
//	len(n) >= 4:  <n[0:2]>/<n[2:4]>/<n>
//
// The name is case-folded to lowercase ASCII before the length check and
// directory split; non-ASCII bytes pass through unchanged.
func Resolve(name string) (string, error) {
	if name == "" {
		return "", &ErrInvalidName{Name: name}
	}
	n := foldASCII(name)
	switch len(n) {
	case 1:
		return "1/" + n, nil
	case 2:
		return "2/" + n, nil
	case 3:
		return "3/" + n[0:1] + "/" + n, nil
	default:
		return n[0:2] + "/" + n[2:4] + "/" + n, nil
	}
}

func foldASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
