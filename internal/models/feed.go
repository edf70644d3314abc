package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// SourceType is the kind of site a feed is built from
type SourceType string

const (
	SourceWebsite   SourceType = "website"
	SourceYouTube   SourceType = "youtube"
	SourceTwitter   SourceType = "twitter"
	SourceInstagram SourceType = "instagram"
	SourceFacebook  SourceType = "facebook"
	SourceReddit    SourceType = "reddit"
	SourceLinkedIn  SourceType = "linkedin"
	SourceTikTok    SourceType = "tiktok"
	SourceTelegram  SourceType = "telegram"
	SourceMedium    SourceType = "medium"
	SourceBlog      SourceType = "blog"
)

// SourceTypes lists every supported source type
var SourceTypes = []SourceType{
	SourceWebsite, SourceYouTube, SourceTwitter, SourceInstagram, SourceFacebook,
	SourceReddit, SourceLinkedIn, SourceTikTok, SourceTelegram, SourceMedium, SourceBlog,
}

// Valid reports whether t is a known source type
func (t SourceType) Valid() bool {
	for _, s := range SourceTypes {
		if s == t {
			return true
		}
	}
	return false
}

// FeedStatus represents the current state of a feed
type FeedStatus string

const (
	FeedStatusActive FeedStatus = "active"
	FeedStatusPaused FeedStatus = "paused"
	FeedStatusError  FeedStatus = "error"
)

// Valid reports whether s is a known feed status
func (s FeedStatus) Valid() bool {
	switch s {
	case FeedStatusActive, FeedStatusPaused, FeedStatusError:
		return true
	}
	return false
}

// FilterType selects what a filter rule looks at
type FilterType string

const (
	FilterKeyword FilterType = "keyword"
	FilterDomain  FilterType = "domain"
	FilterDate    FilterType = "date"
)

// FilterAction decides whether matching items are kept or dropped
type FilterAction string

const (
	FilterInclude FilterAction = "include"
	FilterExclude FilterAction = "exclude"
)

// FilterRule is a single feed filter
type FilterRule struct {
	ID     string       `json:"id"`
	Type   FilterType   `json:"type"`
	Action FilterAction `json:"action"`
	Value  string       `json:"value"`
}

// NewFilterRule creates a rule with a fresh id
func NewFilterRule(typ FilterType, action FilterAction, value string) FilterRule {
	return FilterRule{ID: uuid.NewString(), Type: typ, Action: action, Value: value}
}

// FilterRules is stored as a JSON text column
type FilterRules []FilterRule

func (f FilterRules) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	return valueJSON([]FilterRule(f))
}

func (f *FilterRules) Scan(value interface{}) error {
	return scanJSON(value, f, FilterRules{})
}

// Feed represents a configured content source
type Feed struct {
	ID              string      `gorm:"primaryKey;size:64" json:"id"`
	Name            string      `gorm:"size:255;not null" json:"name"`
	Description     string      `gorm:"type:text" json:"description,omitempty"`
	SourceURL       string      `gorm:"size:2048;not null" json:"sourceUrl"`
	SourceType      SourceType  `gorm:"size:20;index" json:"sourceType"`
	Status          FeedStatus  `gorm:"size:20;default:'active'" json:"status"`
	ItemCount       int         `json:"itemCount"`
	Filters         FilterRules `gorm:"type:text" json:"filters"`
	AutoRefresh     bool        `json:"autoRefresh"`
	RefreshInterval int         `json:"refreshInterval,omitempty"` // minutes
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (Feed) TableName() string { return "feeds" }

func (f *Feed) GetID() string            { return f.ID }
func (f *Feed) SetID(id string)          { f.ID = id }
func (f *Feed) SetCreatedAt(t time.Time) { f.CreatedAt = t }
func (f *Feed) SetUpdatedAt(t time.Time) { f.UpdatedAt = t }

// FeedPatch names the feed fields to change; nil fields are left alone
type FeedPatch struct {
	Name            *string
	Description     *string
	SourceURL       *string
	SourceType      *SourceType
	Status          *FeedStatus
	ItemCount       *int
	Filters         *[]FilterRule
	AutoRefresh     *bool
	RefreshInterval *int
}

// Apply merges the patch onto f
func (p FeedPatch) Apply(f *Feed) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.SourceURL != nil {
		f.SourceURL = *p.SourceURL
	}
	if p.SourceType != nil {
		f.SourceType = *p.SourceType
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.ItemCount != nil {
		f.ItemCount = *p.ItemCount
	}
	if p.Filters != nil {
		f.Filters = append(FilterRules{}, (*p.Filters)...)
	}
	if p.AutoRefresh != nil {
		f.AutoRefresh = *p.AutoRefresh
	}
	if p.RefreshInterval != nil {
		f.RefreshInterval = *p.RefreshInterval
	}
}

// FeedItem is a single syndicated entry belonging to one feed
type FeedItem struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id"`
	FeedID      string      `gorm:"size:64;index" json:"feedId"`
	Title       string      `gorm:"size:500" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Link        string      `gorm:"size:2048" json:"link"`
	PubDate     time.Time   `gorm:"index" json:"pubDate"`
	Author      string      `gorm:"size:255" json:"author,omitempty"`
	Categories  StringSlice `gorm:"type:text" json:"categories,omitempty"`
	Content     string      `gorm:"type:text" json:"content,omitempty"`
	ImageURL    string      `gorm:"size:2048" json:"imageUrl,omitempty"`
	IsPinned    bool        `json:"isPinned,omitempty"`
	IsHidden    bool        `json:"isHidden,omitempty"`

	// insertion order for relational listings; the blob array keeps it implicitly
	CreatedAt time.Time `json:"-"`
}

func (FeedItem) TableName() string { return "feed_items" }

func (i *FeedItem) GetID() string   { return i.ID }
func (i *FeedItem) SetID(id string) { i.ID = id }

// FeedItemPatch changes the reader flags of an item
type FeedItemPatch struct {
	IsPinned *bool
	IsHidden *bool
}

// Apply merges the patch onto i
func (p FeedItemPatch) Apply(i *FeedItem) {
	if p.IsPinned != nil {
		i.IsPinned = *p.IsPinned
	}
	if p.IsHidden != nil {
		i.IsHidden = *p.IsHidden
	}
}

// BundleStatus represents whether a bundle is shown
type BundleStatus string

const (
	BundleStatusActive BundleStatus = "active"
	BundleStatusPaused BundleStatus = "paused"
)

// SortField orders bundle items
type SortField string

const (
	SortByDate   SortField = "date"
	SortByTitle  SortField = "title"
	SortBySource SortField = "source"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Bundle aggregates several feeds for combined display
type Bundle struct {
	ID          string       `gorm:"primaryKey;size:64" json:"id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	FeedIDs     StringSlice  `gorm:"type:text" json:"feedIds"`
	CreatedAt   time.Time    `json:"createdAt"`
	Status      BundleStatus `gorm:"size:20;default:'active'" json:"status"`
	SortBy      SortField    `gorm:"size:20;default:'date'" json:"sortBy"`
	SortOrder   SortOrder    `gorm:"size:4;default:'desc'" json:"sortOrder"`
}

func (Bundle) TableName() string { return "bundles" }

func (b *Bundle) GetID() string            { return b.ID }
func (b *Bundle) SetID(id string)          { b.ID = id }
func (b *Bundle) SetCreatedAt(t time.Time) { b.CreatedAt = t }

// WidgetTheme is the color scheme of an embedded widget
type WidgetTheme string

const (
	ThemeLight  WidgetTheme = "light"
	ThemeDark   WidgetTheme = "dark"
	ThemeCustom WidgetTheme = "custom"
)

// WidgetStyle is stored as a JSON text column
type WidgetStyle struct {
	Theme            WidgetTheme `json:"theme"`
	PrimaryColor     string      `json:"primaryColor,omitempty"`
	FontFamily       string      `json:"fontFamily,omitempty"`
	ShowImages       bool        `json:"showImages"`
	ShowDescriptions bool        `json:"showDescriptions"`
	ItemsPerPage     int         `json:"itemsPerPage"`
}

func (s WidgetStyle) Value() (driver.Value, error) {
	return valueJSON(s)
}

func (s *WidgetStyle) Scan(value interface{}) error {
	return scanJSON(value, s, WidgetStyle{})
}

// DefaultWidgetStyle returns the style new widgets start with
func DefaultWidgetStyle(theme WidgetTheme) WidgetStyle {
	if theme == "" {
		theme = ThemeLight
	}
	return WidgetStyle{
		Theme:            theme,
		ShowImages:       true,
		ShowDescriptions: true,
		ItemsPerPage:     10,
	}
}

// Widget is an embeddable rendering of one or more feeds
type Widget struct {
	ID        string      `gorm:"primaryKey;size:64" json:"id"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	FeedIDs   StringSlice `gorm:"type:text" json:"feedIds"`
	BundleID  string      `gorm:"size:64" json:"bundleId,omitempty"`
	Style     WidgetStyle `gorm:"type:text" json:"style"`
	EmbedCode string      `gorm:"type:text" json:"embedCode"`
	CreatedAt time.Time   `json:"createdAt"`
	Views     int         `json:"views"`
}

func (Widget) TableName() string { return "widgets" }

func (w *Widget) GetID() string            { return w.ID }
func (w *Widget) SetID(id string)          { w.ID = id }
func (w *Widget) SetCreatedAt(t time.Time) { w.CreatedAt = t }
