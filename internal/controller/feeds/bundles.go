package feeds

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/chatzia/internal/controller"
	"github.com/chatzia/internal/filter"
	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
)

// BundleInput is the form data of a new bundle
type BundleInput struct {
	Name        string
	Description string
	FeedIDs     []string
}

// CreateBundle stores an active bundle sorted by date, newest first
func (c *Controller) CreateBundle(ctx context.Context, in BundleInput) (models.Bundle, error) {
	const op = "create bundle"

	name := strings.TrimSpace(in.Name)
	if name == "" || len(in.FeedIDs) == 0 {
		return models.Bundle{}, c.invalid(op, "a name and at least one feed are required")
	}

	bundle := models.Bundle{
		Name:        name,
		Description: in.Description,
		FeedIDs:     dedupe(in.FeedIDs),
		Status:      models.BundleStatusActive,
		SortBy:      models.SortByDate,
		SortOrder:   models.SortDesc,
	}

	created, err := controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Bundle, error) {
		return c.repo.Bundles.Create(ctx, bundle)
	}, func(b models.Bundle) {
		c.bundles = append(slices.Clone(c.bundles), b)
	})
	if err != nil {
		return models.Bundle{}, err
	}
	c.log.Info().Str("bundle_id", created.ID).Int("feeds", len(created.FeedIDs)).Msg("Bundle created")
	return created, nil
}

// DeleteBundle removes a bundle after confirmation
func (c *Controller) DeleteBundle(ctx context.Context, id string) (bool, error) {
	if !c.opts.Confirmer.Confirm(ctx, fmt.Sprintf("Delete bundle %q?", id)) {
		return false, nil
	}
	_, err := controller.Mutate(ctx, c.core, "delete bundle", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.repo.Bundles.Delete(ctx, id)
	}, func(struct{}) {
		c.bundles = controller.Remove(c.bundles, id)
	})
	return err == nil, err
}

// WidgetInput is the form data of a new widget
type WidgetInput struct {
	Name     string
	FeedIDs  []string
	BundleID string
	Theme    models.WidgetTheme
}

// EmbedCode returns the iframe snippet for a widget id
func (c *Controller) EmbedCode(widgetID string) string {
	base := strings.TrimRight(c.opts.EmbedBaseURL, "/")
	return fmt.Sprintf(`<iframe src="%s/%s" width="100%%" height="%d" frameborder="0"></iframe>`,
		base, widgetID, c.opts.WidgetHeight)
}

// GenerateWidget stores a widget whose embed code points at its own id
func (c *Controller) GenerateWidget(ctx context.Context, in WidgetInput) (models.Widget, error) {
	const op = "generate widget"

	name := strings.TrimSpace(in.Name)
	if name == "" || len(in.FeedIDs) == 0 {
		return models.Widget{}, c.invalid(op, "a name and at least one feed are required")
	}
	switch in.Theme {
	case "", models.ThemeLight, models.ThemeDark, models.ThemeCustom:
	default:
		return models.Widget{}, c.invalid(op, "unknown theme %q", in.Theme)
	}

	id := c.repo.Widgets.NewID()
	widget := models.Widget{
		ID:        id,
		Name:      name,
		FeedIDs:   dedupe(in.FeedIDs),
		BundleID:  in.BundleID,
		Style:     models.DefaultWidgetStyle(in.Theme),
		EmbedCode: c.EmbedCode(id),
		Views:     0,
	}

	created, err := controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Widget, error) {
		return c.repo.Widgets.Create(ctx, widget)
	}, func(w models.Widget) {
		c.widgets = append(slices.Clone(c.widgets), w)
	})
	if err != nil {
		return models.Widget{}, err
	}
	c.log.Info().Str("widget_id", created.ID).Msg("Widget generated")
	return created, nil
}

// RecordWidgetView counts one impression on the stored widget
func (c *Controller) RecordWidgetView(ctx context.Context, id string) (models.Widget, error) {
	return controller.Mutate(ctx, c.core, "record view", func(ctx context.Context) (models.Widget, error) {
		return c.repo.Widgets.Update(ctx, id, storage.PatchFunc[models.Widget](func(w *models.Widget) {
			w.Views++
		}))
	}, func(w models.Widget) {
		c.widgets = controller.Replace(c.widgets, w)
	})
}

// DeleteWidget removes a widget after confirmation
func (c *Controller) DeleteWidget(ctx context.Context, id string) (bool, error) {
	if !c.opts.Confirmer.Confirm(ctx, fmt.Sprintf("Delete widget %q?", id)) {
		return false, nil
	}
	_, err := controller.Mutate(ctx, c.core, "delete widget", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.repo.Widgets.Delete(ctx, id)
	}, func(struct{}) {
		c.widgets = controller.Remove(c.widgets, id)
	})
	return err == nil, err
}

func dedupe(ids []string) models.StringSlice {
	out := make(models.StringSlice, 0, len(ids))
	for _, id := range ids {
		if id != "" && !out.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// FeedRef is a feed reference resolved against the loaded feeds
type FeedRef struct {
	ID      string
	Name    string
	Missing bool
}

// ResolveFeeds maps ids to feed names; unknown ids become Missing refs
func (c *Controller) ResolveFeeds(ids []string) []FeedRef {
	refs := make([]FeedRef, 0, len(ids))
	c.core.Read(func(controller.Status[View]) {
		for _, id := range ids {
			if f, ok := controller.Find(c.feeds, id); ok {
				refs = append(refs, FeedRef{ID: id, Name: f.Name})
				continue
			}
			refs = append(refs, FeedRef{ID: id, Name: DeletedFeedName, Missing: true})
		}
	})
	return refs
}

// sampleItem stands in for real items until something has been fetched
func sampleItem(feedID string, now time.Time) models.FeedItem {
	return models.FeedItem{
		ID:          "sample",
		FeedID:      feedID,
		Title:       "Sample RSS article",
		Description: "This is a sample item. Real articles appear here once the feed is active.",
		Link:        "https://example.com/article1",
		PubDate:     now,
		Author:      "Sample Author",
		Categories:  models.StringSlice{"Technology", "News"},
	}
}

// ReaderItems lists the visible items of one feed (or all feeds when feedID
// is empty) that pass the feed's filter rules and contain search in their
// title or description. Pinned items come first.
func (c *Controller) ReaderItems(feedID, search string) []models.FeedItem {
	var out []models.FeedItem
	c.core.Read(func(controller.Status[View]) {
		if len(c.items) == 0 {
			if len(c.feeds) > 0 {
				out = []models.FeedItem{sampleItem(c.feeds[0].ID, c.now())}
			}
			return
		}

		rules := make(map[string][]models.FilterRule, len(c.feeds))
		for _, f := range c.feeds {
			rules[f.ID] = f.Filters
		}
		needle := strings.ToLower(strings.TrimSpace(search))

		for _, item := range c.items {
			if item.IsHidden || (feedID != "" && item.FeedID != feedID) {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(item.Title), needle) &&
				!strings.Contains(strings.ToLower(item.Description), needle) {
				continue
			}
			out = append(out, item)
		}
		out = filter.Apply(out, rules)
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsPinned && !out[j].IsPinned
	})
	if out == nil {
		out = []models.FeedItem{}
	}
	return out
}

// BundleItems lists the visible items of the bundle's feeds that pass their
// feed's filter rules, in the bundle's order
func (c *Controller) BundleItems(bundleID string) ([]models.FeedItem, error) {
	var (
		bundle models.Bundle
		found  bool
		out    []models.FeedItem
		names  = map[string]string{}
	)
	c.core.Read(func(controller.Status[View]) {
		bundle, found = controller.Find(c.bundles, bundleID)
		if !found {
			return
		}
		rules := make(map[string][]models.FilterRule, len(c.feeds))
		for _, f := range c.feeds {
			names[f.ID] = f.Name
			rules[f.ID] = f.Filters
		}
		for _, item := range c.items {
			if !item.IsHidden && bundle.FeedIDs.Contains(item.FeedID) {
				out = append(out, item)
			}
		}
		out = filter.Apply(out, rules)
	})
	if !found {
		return nil, fmt.Errorf("%w: bundle %q", storage.ErrNotFound, bundleID)
	}

	compare := func(a, b models.FeedItem) int {
		switch bundle.SortBy {
		case models.SortByTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case models.SortBySource:
			return strings.Compare(strings.ToLower(names[a.FeedID]), strings.ToLower(names[b.FeedID]))
		default:
			return a.PubDate.Compare(b.PubDate)
		}
	}
	slices.SortStableFunc(out, func(a, b models.FeedItem) int {
		if bundle.SortOrder == models.SortAsc {
			return compare(a, b)
		}
		return compare(b, a)
	})
	if out == nil {
		out = []models.FeedItem{}
	}
	return out, nil
}

// Stats are the dashboard counters
type Stats struct {
	ActiveFeeds int
	TotalItems  int
	TodayItems  int
	Bundles     int
	Widgets     int
	TotalViews  int
}

// Stats counts the loaded records; TodayItems uses the local calendar day
func (c *Controller) Stats() Stats {
	var s Stats
	now := c.now()
	y, m, d := now.Date()
	c.core.Read(func(controller.Status[View]) {
		for _, f := range c.feeds {
			if f.Status == models.FeedStatusActive {
				s.ActiveFeeds++
			}
		}
		s.TotalItems = len(c.items)
		for _, item := range c.items {
			iy, im, id := item.PubDate.In(now.Location()).Date()
			if iy == y && im == m && id == d {
				s.TodayItems++
			}
		}
		s.Bundles = len(c.bundles)
		s.Widgets = len(c.widgets)
		for _, w := range c.widgets {
			s.TotalViews += w.Views
		}
	})
	return s
}
