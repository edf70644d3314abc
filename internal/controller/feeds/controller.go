// Package feeds is the view-state controller of the RSS feed dashboard.
package feeds

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatzia/internal/controller"
	"github.com/chatzia/internal/filter"
	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/pkg/logger"
)

// View is a screen of the feed dashboard
type View string

const (
	ViewDashboard View = "dashboard"
	ViewCreate    View = "create"
	ViewReader    View = "reader"
	ViewBundles   View = "bundles"
	ViewWidgets   View = "widgets"
	ViewAnalytics View = "analytics"
	ViewSettings  View = "settings"
)

// DeletedFeedName is shown for references to feeds that no longer exist
const DeletedFeedName = "(deleted feed)"

// Options holds the defaults applied to new records
type Options struct {
	DefaultRefreshInterval int // minutes
	EmbedBaseURL           string
	WidgetHeight           int
	Confirmer              controller.Confirmer
}

func (o *Options) setDefaults() {
	if o.DefaultRefreshInterval <= 0 {
		o.DefaultRefreshInterval = 60
	}
	if o.EmbedBaseURL == "" {
		o.EmbedBaseURL = "https://feedflow.app/widget"
	}
	if o.WidgetHeight <= 0 {
		o.WidgetHeight = 600
	}
	if o.Confirmer == nil {
		o.Confirmer = controller.AlwaysConfirm
	}
}

// State is a snapshot of everything the dashboard renders
type State struct {
	controller.Status[View]
	Feeds          []models.Feed
	Items          []models.FeedItem
	Bundles        []models.Bundle
	Widgets        []models.Widget
	SelectedFeedID string
}

// Controller owns the feed dashboard state and every mutation of it
type Controller struct {
	repo *storage.FeedRepository
	opts Options
	log  *logger.Logger
	core *controller.Core[View]
	now  func() time.Time

	// guarded by core
	feeds    []models.Feed
	items    []models.FeedItem
	bundles  []models.Bundle
	widgets  []models.Widget
	selected string
}

// New creates a controller with empty state on the dashboard view
func New(repo *storage.FeedRepository, opts Options, log *logger.Logger) *Controller {
	opts.setDefaults()
	log = log.WithComponent("feeds")
	return &Controller{
		repo:    repo,
		opts:    opts,
		log:     log,
		core:    controller.NewCore(log, ViewDashboard, ViewCreate, ViewReader, ViewBundles, ViewWidgets, ViewAnalytics, ViewSettings),
		now:     time.Now,
		feeds:   []models.Feed{},
		items:   []models.FeedItem{},
		bundles: []models.Bundle{},
		widgets: []models.Widget{},
	}
}

// State returns a copy of the current state
func (c *Controller) State() State {
	var s State
	c.core.Read(func(st controller.Status[View]) {
		s = State{
			Status:         st,
			Feeds:          slices.Clone(c.feeds),
			Items:          slices.Clone(c.items),
			Bundles:        slices.Clone(c.bundles),
			Widgets:        slices.Clone(c.widgets),
			SelectedFeedID: c.selected,
		}
	})
	return s
}

// Navigate switches the current view
func (c *Controller) Navigate(view View) error {
	return c.core.Navigate(view)
}

// DismissError clears the error banner
func (c *Controller) DismissError() {
	c.core.DismissError()
}

type snapshot struct {
	feeds   []models.Feed
	items   []models.FeedItem
	bundles []models.Bundle
	widgets []models.Widget
}

// Load fetches all four collections in parallel and replaces the state.
// On failure the previous state is kept.
func (c *Controller) Load(ctx context.Context) error {
	_, err := controller.Mutate(ctx, c.core, "load", func(ctx context.Context) (snapshot, error) {
		var s snapshot
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			s.feeds, err = c.repo.Feeds.GetAll(ctx)
			return err
		})
		g.Go(func() (err error) {
			s.items, err = c.repo.Items.GetAll(ctx)
			return err
		})
		g.Go(func() (err error) {
			s.bundles, err = c.repo.Bundles.GetAll(ctx)
			return err
		})
		g.Go(func() (err error) {
			s.widgets, err = c.repo.Widgets.GetAll(ctx)
			return err
		})
		return s, g.Wait()
	}, func(s snapshot) {
		c.feeds, c.items, c.bundles, c.widgets = s.feeds, s.items, s.bundles, s.widgets
	})
	if err != nil {
		return err
	}

	var feeds int
	c.core.Read(func(controller.Status[View]) { feeds = len(c.feeds) })
	c.log.Info().Int("feeds", feeds).Msg("Dashboard loaded")
	return nil
}

func (c *Controller) invalid(op, format string, args ...interface{}) error {
	return c.core.Fail(op, fmt.Errorf("%w: %s", storage.ErrValidation, fmt.Sprintf(format, args...)))
}

func validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FeedInput is the form data of a new feed
type FeedInput struct {
	Name            string
	Description     string
	SourceURL       string
	SourceType      models.SourceType
	Filters         []models.FilterRule
	AutoRefresh     *bool
	RefreshInterval int
}

// CreateFeed stores a new active feed and returns to the dashboard
func (c *Controller) CreateFeed(ctx context.Context, in FeedInput) (models.Feed, error) {
	const op = "create feed"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Feed{}, c.invalid(op, "feed name is required")
	}
	sourceURL := strings.TrimSpace(in.SourceURL)
	if !validSourceURL(sourceURL) {
		return models.Feed{}, c.invalid(op, "invalid source URL %q", in.SourceURL)
	}
	if in.SourceType == "" {
		in.SourceType = models.SourceWebsite
	}
	if !in.SourceType.Valid() {
		return models.Feed{}, c.invalid(op, "unknown source type %q", in.SourceType)
	}
	filters, err := prepareFilters(in.Filters)
	if err != nil {
		return models.Feed{}, c.core.Fail(op, err)
	}

	feed := models.Feed{
		Name:            name,
		Description:     in.Description,
		SourceURL:       sourceURL,
		SourceType:      in.SourceType,
		Status:          models.FeedStatusActive,
		ItemCount:       0,
		Filters:         filters,
		AutoRefresh:     true,
		RefreshInterval: c.opts.DefaultRefreshInterval,
	}
	if in.AutoRefresh != nil {
		feed.AutoRefresh = *in.AutoRefresh
	}
	if in.RefreshInterval > 0 {
		feed.RefreshInterval = in.RefreshInterval
	}

	created, err := controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Feed, error) {
		return c.repo.Feeds.Create(ctx, feed)
	}, func(f models.Feed) {
		c.feeds = append(slices.Clone(c.feeds), f)
	})
	if err != nil {
		return models.Feed{}, err
	}

	c.core.Write(func(st *controller.Status[View]) {
		st.View = ViewDashboard
		c.selected = ""
	})
	c.log.Info().Str("feed_id", created.ID).Str("name", created.Name).Msg("Feed created")
	return created, nil
}

func prepareFilters(rules []models.FilterRule) (models.FilterRules, error) {
	out := make(models.FilterRules, 0, len(rules))
	for _, r := range rules {
		if err := filter.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrValidation, err)
		}
		if r.ID == "" {
			r = models.NewFilterRule(r.Type, r.Action, r.Value)
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdateFeed applies patch to the stored feed and replaces it in state
func (c *Controller) UpdateFeed(ctx context.Context, id string, patch models.FeedPatch) (models.Feed, error) {
	const op = "update feed"

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Feed{}, c.invalid(op, "feed name is required")
	}
	if patch.SourceURL != nil && !validSourceURL(*patch.SourceURL) {
		return models.Feed{}, c.invalid(op, "invalid source URL %q", *patch.SourceURL)
	}
	if patch.SourceType != nil && !patch.SourceType.Valid() {
		return models.Feed{}, c.invalid(op, "unknown source type %q", *patch.SourceType)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.Feed{}, c.invalid(op, "unknown feed status %q", *patch.Status)
	}
	if patch.RefreshInterval != nil && *patch.RefreshInterval <= 0 {
		return models.Feed{}, c.invalid(op, "refresh interval must be positive, got %d", *patch.RefreshInterval)
	}
	if patch.ItemCount != nil && *patch.ItemCount < 0 {
		return models.Feed{}, c.invalid(op, "item count must not be negative, got %d", *patch.ItemCount)
	}
	if patch.Filters != nil {
		filters, err := prepareFilters(*patch.Filters)
		if err != nil {
			return models.Feed{}, c.core.Fail(op, err)
		}
		rules := []models.FilterRule(filters)
		patch.Filters = &rules
	}

	return controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Feed, error) {
		return c.repo.Feeds.Update(ctx, id, patch)
	}, func(f models.Feed) {
		c.feeds = controller.Replace(c.feeds, f)
	})
}

func (c *Controller) feed(id string) (models.Feed, bool) {
	var (
		f  models.Feed
		ok bool
	)
	c.core.Read(func(controller.Status[View]) {
		f, ok = controller.Find(c.feeds, id)
	})
	return f, ok
}

func (c *Controller) notFound(op, kind, id string) error {
	return c.core.Fail(op, fmt.Errorf("%w: %s %q", storage.ErrNotFound, kind, id))
}

// ToggleFeedStatus pauses an active feed and activates any other
func (c *Controller) ToggleFeedStatus(ctx context.Context, id string) (models.Feed, error) {
	f, ok := c.feed(id)
	if !ok {
		return models.Feed{}, c.notFound("toggle feed", "feed", id)
	}
	next := models.FeedStatusActive
	if f.Status == models.FeedStatusActive {
		next = models.FeedStatusPaused
	}
	return c.UpdateFeed(ctx, id, models.FeedPatch{Status: &next})
}

// AddFeedFilter appends a new rule to the feed's filters
func (c *Controller) AddFeedFilter(ctx context.Context, feedID string, typ models.FilterType, action models.FilterAction, value string) (models.Feed, error) {
	const op = "add filter"

	f, ok := c.feed(feedID)
	if !ok {
		return models.Feed{}, c.notFound(op, "feed", feedID)
	}
	rule := models.NewFilterRule(typ, action, strings.TrimSpace(value))
	if err := filter.Validate(rule); err != nil {
		return models.Feed{}, c.core.Fail(op, fmt.Errorf("%w: %w", storage.ErrValidation, err))
	}

	rules := append(slices.Clone([]models.FilterRule(f.Filters)), rule)
	return c.UpdateFeed(ctx, feedID, models.FeedPatch{Filters: &rules})
}

// RemoveFeedFilter drops the rule with filterID from the feed's filters
func (c *Controller) RemoveFeedFilter(ctx context.Context, feedID, filterID string) (models.Feed, error) {
	f, ok := c.feed(feedID)
	if !ok {
		return models.Feed{}, c.notFound("remove filter", "feed", feedID)
	}
	rules := slices.DeleteFunc(slices.Clone([]models.FilterRule(f.Filters)), func(r models.FilterRule) bool {
		return r.ID == filterID
	})
	return c.UpdateFeed(ctx, feedID, models.FeedPatch{Filters: &rules})
}

// DeleteFeed removes the feed after confirmation. Bundles and widgets that
// reference it keep the id. It reports whether the feed was deleted.
func (c *Controller) DeleteFeed(ctx context.Context, id string) (bool, error) {
	f, ok := c.feed(id)
	prompt := fmt.Sprintf("Delete feed %q?", id)
	if ok {
		prompt = fmt.Sprintf("Delete feed %q?", f.Name)
	}
	if !c.opts.Confirmer.Confirm(ctx, prompt) {
		return false, nil
	}

	_, err := controller.Mutate(ctx, c.core, "delete feed", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.repo.Feeds.Delete(ctx, id)
	}, func(struct{}) {
		c.feeds = controller.Remove(c.feeds, id)
		if c.selected == id {
			c.selected = ""
		}
	})
	if err != nil {
		return false, err
	}
	c.log.Info().Str("feed_id", id).Msg("Feed deleted")
	return true, nil
}

// SelectFeed marks a feed as selected; an empty id clears the selection
func (c *Controller) SelectFeed(id string) error {
	if id != "" {
		if _, ok := c.feed(id); !ok {
			return c.notFound("select feed", "feed", id)
		}
	}
	c.core.Write(func(*controller.Status[View]) {
		c.selected = id
	})
	return nil
}

// EditFeed selects a feed and opens the form view
func (c *Controller) EditFeed(id string) error {
	if err := c.SelectFeed(id); err != nil {
		return err
	}
	return c.Navigate(ViewCreate)
}

// UpdateItem changes the pinned or hidden flag of an item
func (c *Controller) UpdateItem(ctx context.Context, id string, patch models.FeedItemPatch) (models.FeedItem, error) {
	return controller.Mutate(ctx, c.core, "update item", func(ctx context.Context) (models.FeedItem, error) {
		return c.repo.Items.Update(ctx, id, patch)
	}, func(item models.FeedItem) {
		c.items = controller.Replace(c.items, item)
	})
}
