package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chatzia/internal/models"
)

func rule(typ models.FilterType, action models.FilterAction, value string) models.FilterRule {
	return models.FilterRule{Type: typ, Action: action, Value: value}
}

func TestMatch(t *testing.T) {
	may := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		item  models.FeedItem
		rules []models.FilterRule
		want  bool
	}{
		{
			name: "no rules passes everything",
			item: models.FeedItem{Title: "anything"},
			want: true,
		},
		{
			name:  "keyword include matches title",
			item:  models.FeedItem{Title: "Kubernetes 1.32 released"},
			rules: []models.FilterRule{rule(models.FilterKeyword, models.FilterInclude, "kubernetes")},
			want:  true,
		},
		{
			name:  "keyword include matches description",
			item:  models.FeedItem{Title: "Release", Description: "now with Kubernetes"},
			rules: []models.FilterRule{rule(models.FilterKeyword, models.FilterInclude, "KUBERNETES")},
			want:  true,
		},
		{
			name:  "keyword include no match",
			item:  models.FeedItem{Title: "Python update"},
			rules: []models.FilterRule{rule(models.FilterKeyword, models.FilterInclude, "kubernetes")},
			want:  false,
		},
		{
			name:  "keyword exclude blocks",
			item:  models.FeedItem{Title: "Job vacancy"},
			rules: []models.FilterRule{rule(models.FilterKeyword, models.FilterExclude, "vacancy")},
			want:  false,
		},
		{
			name: "includes are OR'd",
			item: models.FeedItem{Title: "Go 1.23"},
			rules: []models.FilterRule{
				rule(models.FilterKeyword, models.FilterInclude, "rust"),
				rule(models.FilterKeyword, models.FilterInclude, "go"),
			},
			want: true,
		},
		{
			name: "exclude wins over include",
			item: models.FeedItem{Title: "Kubernetes vacancy"},
			rules: []models.FilterRule{
				rule(models.FilterKeyword, models.FilterInclude, "kubernetes"),
				rule(models.FilterKeyword, models.FilterExclude, "vacancy"),
			},
			want: false,
		},
		{
			name:  "domain include exact host",
			item:  models.FeedItem{Link: "https://example.com/a"},
			rules: []models.FilterRule{rule(models.FilterDomain, models.FilterInclude, "example.com")},
			want:  true,
		},
		{
			name:  "domain include subdomain",
			item:  models.FeedItem{Link: "https://blog.example.com/a"},
			rules: []models.FilterRule{rule(models.FilterDomain, models.FilterInclude, "https://www.example.com")},
			want:  true,
		},
		{
			name:  "domain suffix is not a subdomain",
			item:  models.FeedItem{Link: "https://notexample.com/a"},
			rules: []models.FilterRule{rule(models.FilterDomain, models.FilterInclude, "example.com")},
			want:  false,
		},
		{
			name:  "domain exclude",
			item:  models.FeedItem{Link: "https://ads.tracker.io/x"},
			rules: []models.FilterRule{rule(models.FilterDomain, models.FilterExclude, "tracker.io")},
			want:  false,
		},
		{
			name:  "date include keeps items on the day",
			item:  models.FeedItem{PubDate: may},
			rules: []models.FilterRule{rule(models.FilterDate, models.FilterInclude, "2024-05-10")},
			want:  true,
		},
		{
			name:  "date include drops older items",
			item:  models.FeedItem{PubDate: may},
			rules: []models.FilterRule{rule(models.FilterDate, models.FilterInclude, "2024-05-11")},
			want:  false,
		},
		{
			name:  "date exclude drops newer items",
			item:  models.FeedItem{PubDate: may},
			rules: []models.FilterRule{rule(models.FilterDate, models.FilterExclude, "2024-01-01")},
			want:  false,
		},
		{
			name:  "malformed date rule never matches",
			item:  models.FeedItem{PubDate: may},
			rules: []models.FilterRule{rule(models.FilterDate, models.FilterExclude, "yesterday")},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.item, tt.rules); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyKeepsOrder(t *testing.T) {
	items := []models.FeedItem{
		{ID: "1", FeedID: "a", Title: "Go news"},
		{ID: "2", FeedID: "a", Title: "Rust news"},
		{ID: "3", FeedID: "b", Title: "Rust weekly"},
		{ID: "4", FeedID: "a", Title: "More Go"},
		{ID: "5", FeedID: "c", Title: "Sponsored Go"},
	}
	got := Apply(items, map[string][]models.FilterRule{
		"a": {rule(models.FilterKeyword, models.FilterInclude, "go")},
		"c": {rule(models.FilterKeyword, models.FilterExclude, "sponsored")},
	})

	var ids []string
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"1", "3", "4"}, ids); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    models.FilterRule
		wantErr bool
	}{
		{name: "keyword", rule: rule(models.FilterKeyword, models.FilterInclude, "go")},
		{name: "domain", rule: rule(models.FilterDomain, models.FilterExclude, "example.com")},
		{name: "date", rule: rule(models.FilterDate, models.FilterInclude, "2024-05-10")},
		{name: "empty value", rule: rule(models.FilterKeyword, models.FilterInclude, "  "), wantErr: true},
		{name: "bad date", rule: rule(models.FilterDate, models.FilterInclude, "10/05/2024"), wantErr: true},
		{name: "unknown type", rule: rule("regex", models.FilterInclude, "x"), wantErr: true},
		{name: "unknown action", rule: rule(models.FilterKeyword, "keep", "x"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
