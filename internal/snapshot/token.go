package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

const tokenSep = "$$$"

// Token is the compact cross-reference stored in a cached tab's mcqs list:
// pool$$$id, or pool$$$id$$$external_key when the pool carries a stable
// external key. Keeping tokens separate from resolved content lets either
// side be rebuilt without the other.
type Token struct {
	Pool        string
	ID          int64
	ExternalKey string
}

func (t Token) String() string {
	s := t.Pool + tokenSep + strconv.FormatInt(t.ID, 10)
	if t.ExternalKey != "" {
		s += tokenSep + t.ExternalKey
	}
	return s
}

// ParseToken parses the wire form. The external key is taken verbatim, so
// keys containing separators of their own (dates, slugs) survive.
func ParseToken(s string) (Token, error) {
	parts := strings.SplitN(s, tokenSep, 3)
	if len(parts) < 2 || parts[0] == "" {
		return Token{}, fmt.Errorf("malformed token %q", s)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("malformed token %q: bad id", s)
	}
	t := Token{Pool: parts[0], ID: id}
	if len(parts) == 3 {
		t.ExternalKey = parts[2]
	}
	return t, nil
}
