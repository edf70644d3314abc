// Package filter implements the feed item matching engine.
package filter

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chatzia/internal/models"
)

// DateLayout is the format of date rule values
const DateLayout = "2006-01-02"

// Match checks whether an item passes the given set of rules.
// If no rules are provided, the item always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func Match(item models.FeedItem, rules []models.FilterRule) bool {
	if len(rules) == 0 {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range rules {
		switch r.Action {
		case models.FilterInclude:
			hasIncludes = true
			if matchesRule(item, r) {
				anyIncludeMatched = true
			}
		case models.FilterExclude:
			if matchesRule(item, r) {
				return false
			}
		}
	}

	if hasIncludes && !anyIncludeMatched {
		return false
	}
	return true
}

// Apply returns the items that pass the rules of their own feed, keyed by
// feed id, in their original order
func Apply(items []models.FeedItem, rules map[string][]models.FilterRule) []models.FeedItem {
	out := make([]models.FeedItem, 0, len(items))
	for _, item := range items {
		if Match(item, rules[item.FeedID]) {
			out = append(out, item)
		}
	}
	return out
}

func matchesRule(item models.FeedItem, r models.FilterRule) bool {
	switch r.Type {
	case models.FilterKeyword:
		text := strings.ToLower(item.Title + " " + item.Description)
		return strings.Contains(text, strings.ToLower(r.Value))
	case models.FilterDomain:
		return matchesDomain(item.Link, r.Value)
	case models.FilterDate:
		since, err := time.Parse(DateLayout, strings.TrimSpace(r.Value))
		if err != nil || item.PubDate.IsZero() {
			return false
		}
		return !item.PubDate.UTC().Before(since)
	}
	return false
}

func matchesDomain(link, value string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := normalizeHost(u.Hostname())
	domain := normalizeHost(hostOf(value))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// hostOf accepts both "example.com" and "https://example.com/path"
func hostOf(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil {
			return u.Hostname()
		}
	}
	return strings.SplitN(value, "/", 2)[0]
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// Validate checks a rule before it is attached to a feed
func Validate(r models.FilterRule) error {
	switch r.Action {
	case models.FilterInclude, models.FilterExclude:
	default:
		return fmt.Errorf("unknown filter action %q", r.Action)
	}

	value := strings.TrimSpace(r.Value)
	if value == "" {
		return fmt.Errorf("filter value is required")
	}

	switch r.Type {
	case models.FilterKeyword:
	case models.FilterDomain:
		if hostOf(value) == "" {
			return fmt.Errorf("invalid domain %q", value)
		}
	case models.FilterDate:
		if _, err := time.Parse(DateLayout, value); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
		}
	default:
		return fmt.Errorf("unknown filter type %q", r.Type)
	}
	return nil
}
