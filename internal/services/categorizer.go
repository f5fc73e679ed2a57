package services

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"ecom_ops_backend/internal/models"
)

const (
	DefaultMaxPatternLength = 256
	maxCategorizeInput      = 4096
)

// Categorizer evaluates an ordered set of categorization rules. Regex
// patterns are compiled once per Categorizer; patterns that fail to compile
// or exceed the length cap never match.
type Categorizer struct {
	rules         []models.CategorizationRule
	maxPatternLen int

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// NewCategorizer keeps the active rules of rules, highest priority first.
func NewCategorizer(rules []models.CategorizationRule, maxPatternLen int) *Categorizer {
	if maxPatternLen <= 0 {
		maxPatternLen = DefaultMaxPatternLength
	}
	active := make([]models.CategorizationRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && strings.TrimSpace(r.Pattern) != "" {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return &Categorizer{
		rules:         active,
		maxPatternLen: maxPatternLen,
		compiled:      map[string]*regexp.Regexp{},
	}
}

// Match returns the first rule matching description and vendor, or nil.
func (c *Categorizer) Match(description, vendor string) *models.CategorizationRule {
	text := transactionText(description, vendor)
	if text == "" {
		return nil
	}
	for i := range c.rules {
		if c.matches(&c.rules[i], text) {
			rule := c.rules[i]
			return &rule
		}
	}
	return nil
}

// Categorize returns the category of the first matching rule.
func (c *Categorizer) Categorize(description, vendor string) (string, bool) {
	rule := c.Match(description, vendor)
	if rule == nil {
		return "", false
	}
	return rule.Category, true
}

func (c *Categorizer) matches(rule *models.CategorizationRule, text string) bool {
	pattern := strings.TrimSpace(rule.Pattern)
	switch rule.PatternType {
	case models.PatternTypeExact:
		return text == strings.ToUpper(pattern)
	case models.PatternTypeRegex:
		re := c.regex(rule.Pattern)
		return re != nil && re.MatchString(text)
	default:
		return strings.Contains(text, strings.ToUpper(pattern))
	}
}

func (c *Categorizer) regex(pattern string) *regexp.Regexp {
	if len(pattern) > c.maxPatternLen {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.compiled[pattern]; ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = nil
	}
	c.compiled[pattern] = re
	return re
}

// transactionText is description and vendor joined by a space, upper-cased
// and capped in length.
func transactionText(description, vendor string) string {
	text := strings.ToUpper(strings.TrimSpace(strings.TrimSpace(description) + " " + strings.TrimSpace(vendor)))
	if len(text) > maxCategorizeInput {
		text = strings.ToValidUTF8(text[:maxCategorizeInput], "")
	}
	return text
}

// CompilePattern checks a pattern the way Match will use it.
func CompilePattern(patternType, pattern string, maxPatternLen int) error {
	if patternType != models.PatternTypeRegex {
		return nil
	}
	if maxPatternLen <= 0 {
		maxPatternLen = DefaultMaxPatternLength
	}
	if len(pattern) > maxPatternLen {
		return errPatternTooLong(maxPatternLen)
	}
	_, err := regexp.Compile("(?i)" + pattern)
	return err
}
