package common

import "regexp"

// CompilePattern compiles a user-supplied rule pattern for case-insensitive
// matching. An empty pattern matches everything.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return regexp.Compile("")
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, Validationf("invalid pattern %q: %v", pattern, err)
	}
	return re, nil
}
