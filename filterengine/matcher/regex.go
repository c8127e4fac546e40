package matcher

import (
	"regexp"

	"github.com/puzpuzpuz/xsync/v3"
)

// regexCache shares compiled patterns between operators of one registry set.
type regexCache struct {
	m *xsync.MapOf[string, *regexp.Regexp]
}

func newRegexCache() *regexCache {
	return &regexCache{m: xsync.NewMapOf[string, *regexp.Regexp]()}
}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := c.m.Load(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := c.m.LoadOrStore(pattern, re)
	return actual, nil
}

func (c *regexCache) size() int { return c.m.Size() }
