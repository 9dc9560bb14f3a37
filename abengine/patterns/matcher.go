package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	regexMetaCharacters = `.*+?^${}()|[]\`
	regexFlagLetters    = "dgimsuvy"
)

// PatternError reports a delimited /expression/flags pattern that could not
// be compiled. Matching treats it as a non-match.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid regex pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Matches is Match without the diagnostic.
func Matches(url, pattern string) bool {
	ok, _ := Match(url, pattern)
	return ok
}

// Match reports whether url matches pattern.
//
// A blank pattern matches everything. A pattern of the form /expr/flags is a
// regular expression; if it does not compile the result is false together
// with a *PatternError. Any other pattern containing regex metacharacters is
// tried as a bare regular expression and, if that fails to compile, falls
// back to a literal substring test. Plain patterns are case-sensitive
// substring tests.
func Match(url, pattern string) (bool, error) {
	if strings.TrimSpace(pattern) == "" {
		return true, nil
	}

	if expr, flags, ok := splitDelimited(pattern); ok {
		re, err := compileDelimited(expr, flags)
		if err != nil {
			return false, &PatternError{Pattern: pattern, Err: err}
		}
		return re.MatchString(url), nil
	}

	if strings.ContainsAny(pattern, regexMetaCharacters) {
		if re, err := regexp.Compile(pattern); err == nil {
			return re.MatchString(url), nil
		}
	}

	return strings.Contains(url, pattern), nil
}

// splitDelimited splits "/expr/flags". The trailing segment must consist of
// flag letters only, so path-like patterns such as "/products/shoes" are not
// mistaken for regular expressions.
func splitDelimited(pattern string) (expr, flags string, ok bool) {
	if !strings.HasPrefix(pattern, "/") {
		return "", "", false
	}
	last := strings.LastIndex(pattern, "/")
	if last == 0 {
		return "", "", false
	}
	flags = pattern[last+1:]
	for _, f := range flags {
		if !strings.ContainsRune(regexFlagLetters, f) {
			return "", "", false
		}
	}
	return pattern[1:last], flags, true
}

func compileDelimited(expr, flags string) (*regexp.Regexp, error) {
	var (
		inline strings.Builder
		seen   = make(map[rune]bool, len(flags))
		sticky bool
	)
	for _, f := range flags {
		if seen[f] {
			return nil, fmt.Errorf("duplicate flag %q", f)
		}
		seen[f] = true
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'y':
			sticky = true
		}
	}
	if seen['u'] && seen['v'] {
		return nil, fmt.Errorf("flags u and v are mutually exclusive")
	}

	if sticky {
		expr = `\A(?:` + expr + ")"
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	return regexp.Compile(expr)
}
