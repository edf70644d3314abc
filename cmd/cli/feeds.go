package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatzia/internal/controller/feeds"
	"github.com/chatzia/internal/models"
)

// ============ FEED COMMANDS ============

func feedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Feed management commands",
	}

	cmd.AddCommand(feedsListCmd())
	cmd.AddCommand(feedsCreateCmd())
	cmd.AddCommand(feedsUpdateCmd())
	cmd.AddCommand(feedsStatusCmd("pause", "Pause a feed", models.FeedStatusPaused))
	cmd.AddCommand(feedsStatusCmd("resume", "Resume a paused feed", models.FeedStatusActive))
	cmd.AddCommand(feedsDeleteCmd())
	cmd.AddCommand(feedsFilterCmd())
	return cmd
}

func printFeed(f models.Feed) {
	fmt.Printf("[%s] %s (%s)\n", f.ID, f.Name, f.Status)
	fmt.Printf("    Source: %s | Type: %s | Items: %d\n", f.SourceURL, f.SourceType, f.ItemCount)
	if f.AutoRefresh {
		fmt.Printf("    Refresh: every %d min\n", f.RefreshInterval)
	}
	for _, r := range f.Filters {
		fmt.Printf("    Filter %s: %s %s %q\n", r.ID, r.Action, r.Type, r.Value)
	}
}

func feedsListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}

			all := feedCtl.State().Feeds
			fmt.Printf("\n=== Feeds (%d) ===\n\n", len(all))
			for _, f := range all {
				if status != "" && string(f.Status) != status {
					continue
				}
				printFeed(f)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, paused, error)")
	return cmd
}

func feedsCreateCmd() *cobra.Command {
	var in feeds.FeedInput
	var sourceType string
	var noAutoRefresh bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}

			in.SourceType = models.SourceType(sourceType)
			if noAutoRefresh {
				off := false
				in.AutoRefresh = &off
			}

			f, err := feedCtl.CreateFeed(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Feed created:\n")
			printFeed(f)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Feed name (required)")
	cmd.Flags().StringVar(&in.SourceURL, "url", "", "Source URL (required)")
	cmd.Flags().StringVar(&sourceType, "type", string(models.SourceWebsite), "Source type")
	cmd.Flags().StringVar(&in.Description, "description", "", "Feed description")
	cmd.Flags().IntVar(&in.RefreshInterval, "refresh-interval", 0, "Refresh interval in minutes (default from config)")
	cmd.Flags().BoolVar(&noAutoRefresh, "no-auto-refresh", false, "Disable auto refresh")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("url")
	return cmd
}

func feedsUpdateCmd() *cobra.Command {
	var (
		name, url, sourceType, description string
		refreshInterval                    int
		autoRefresh                        bool
	)

	cmd := &cobra.Command{
		Use:   "update <feed-id>",
		Short: "Update feed fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}

			var patch models.FeedPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("url") {
				patch.SourceURL = &url
			}
			if flags.Changed("type") {
				st := models.SourceType(sourceType)
				patch.SourceType = &st
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("refresh-interval") {
				patch.RefreshInterval = &refreshInterval
			}
			if flags.Changed("auto-refresh") {
				patch.AutoRefresh = &autoRefresh
			}

			f, err := feedCtl.UpdateFeed(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printFeed(f)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Feed name")
	cmd.Flags().StringVar(&url, "url", "", "Source URL")
	cmd.Flags().StringVar(&sourceType, "type", "", "Source type")
	cmd.Flags().StringVar(&description, "description", "", "Feed description")
	cmd.Flags().IntVar(&refreshInterval, "refresh-interval", 0, "Refresh interval in minutes")
	cmd.Flags().BoolVar(&autoRefresh, "auto-refresh", true, "Enable auto refresh")
	return cmd
}

func feedsStatusCmd(use, short string, status models.FeedStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <feed-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			f, err := feedCtl.UpdateFeed(cmd.Context(), args[0], models.FeedPatch{Status: &status})
			if err != nil {
				return err
			}
			fmt.Printf("Feed %s is now %s\n", f.ID, f.Status)
			return nil
		},
	}
}

func feedsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feed-id>",
		Short: "Delete a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			deleted, err := feedCtl.DeleteFeed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Println("Cancelled")
				return nil
			}
			fmt.Printf("Feed %s deleted\n", args[0])
			return nil
		},
	}
}

func feedsFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Feed filter rules",
	}

	var typ, action, value string
	add := &cobra.Command{
		Use:   "add <feed-id>",
		Short: "Add a filter rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			f, err := feedCtl.AddFeedFilter(cmd.Context(), args[0],
				models.FilterType(typ), models.FilterAction(action), value)
			if err != nil {
				return err
			}
			printFeed(f)
			return nil
		},
	}
	add.Flags().StringVar(&typ, "type", string(models.FilterKeyword), "Rule type (keyword, domain, date)")
	add.Flags().StringVar(&action, "action", string(models.FilterInclude), "Rule action (include, exclude)")
	add.Flags().StringVar(&value, "value", "", "Keyword, domain or YYYY-MM-DD date (required)")
	add.MarkFlagRequired("value")

	remove := &cobra.Command{
		Use:   "remove <feed-id> <filter-id>",
		Short: "Remove a filter rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			f, err := feedCtl.RemoveFeedFilter(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printFeed(f)
			return nil
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// ============ ITEM COMMANDS ============

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Feed reader commands",
	}

	cmd.AddCommand(itemsListCmd())
	cmd.AddCommand(itemsFlagCmd("pin", "Pin an item to the top", func(v bool) models.FeedItemPatch {
		return models.FeedItemPatch{IsPinned: &v}
	}))
	cmd.AddCommand(itemsFlagCmd("hide", "Hide an item from the reader", func(v bool) models.FeedItemPatch {
		return models.FeedItemPatch{IsHidden: &v}
	}))
	return cmd
}

func printItems(items []models.FeedItem) {
	for _, it := range items {
		marker := " "
		if it.IsPinned {
			marker = "*"
		}
		fmt.Printf("%s [%s] %s\n", marker, it.ID, it.Title)
		fmt.Printf("    %s | %s\n", it.PubDate.Format("2006-01-02 15:04"), it.Link)
		if it.Description != "" {
			fmt.Printf("    %s\n", truncateStr(it.Description, 100))
		}
	}
}

func itemsListCmd() *cobra.Command {
	var feedID, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reader items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			items := feedCtl.ReaderItems(feedID, search)
			fmt.Printf("\n=== Items (%d) ===\n\n", len(items))
			printItems(items)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedID, "feed", "", "Only items of this feed")
	cmd.Flags().StringVar(&search, "search", "", "Search title and description")
	return cmd
}

func itemsFlagCmd(use, short string, patch func(bool) models.FeedItemPatch) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   use + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			it, err := feedCtl.UpdateItem(cmd.Context(), args[0], patch(!off))
			if err != nil {
				return err
			}
			fmt.Printf("Item %s: pinned=%s hidden=%s\n", it.ID, onOff(it.IsPinned), onOff(it.IsHidden))
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "Clear the flag instead of setting it")
	return cmd
}

// ============ BUNDLE COMMANDS ============

func bundlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Feed bundle commands",
	}

	cmd.AddCommand(bundlesListCmd())
	cmd.AddCommand(bundlesCreateCmd())
	cmd.AddCommand(bundlesItemsCmd())
	cmd.AddCommand(bundlesDeleteCmd())
	return cmd
}

func feedNames(ids []string) string {
	var names []string
	for _, ref := range feedCtl.ResolveFeeds(ids) {
		names = append(names, ref.Name)
	}
	return strings.Join(names, ", ")
}

func bundlesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			bundles := feedCtl.State().Bundles
			fmt.Printf("\n=== Bundles (%d) ===\n\n", len(bundles))
			for _, b := range bundles {
				fmt.Printf("[%s] %s (%s)\n", b.ID, b.Name, b.Status)
				fmt.Printf("    Feeds: %s\n", feedNames(b.FeedIDs))
				fmt.Printf("    Sort: %s %s\n\n", b.SortBy, b.SortOrder)
			}
			return nil
		},
	}
}

func bundlesCreateCmd() *cobra.Command {
	var in feeds.BundleInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			b, err := feedCtl.CreateBundle(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Bundle created: [%s] %s\n", b.ID, b.Name)
			fmt.Printf("    Feeds: %s\n", feedNames(b.FeedIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Bundle name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Bundle description")
	cmd.Flags().StringSliceVar(&in.FeedIDs, "feed", nil, "Feed id (repeatable, required)")
	return cmd
}

func bundlesItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "items <bundle-id>",
		Short: "List the items of a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			items, err := feedCtl.BundleItems(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\n=== Bundle Items (%d) ===\n\n", len(items))
			printItems(items)
			return nil
		},
	}
}

func bundlesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bundle-id>",
		Short: "Delete a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			deleted, err := feedCtl.DeleteBundle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if deleted {
				fmt.Printf("Bundle %s deleted\n", args[0])
			}
			return nil
		},
	}
}

// ============ WIDGET COMMANDS ============

func widgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widgets",
		Short: "Embeddable widget commands",
	}

	cmd.AddCommand(widgetsListCmd())
	cmd.AddCommand(widgetsGenerateCmd())
	cmd.AddCommand(widgetsViewCmd())
	cmd.AddCommand(widgetsDeleteCmd())
	return cmd
}

func widgetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List widgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			widgets := feedCtl.State().Widgets
			fmt.Printf("\n=== Widgets (%d) ===\n\n", len(widgets))
			for _, w := range widgets {
				fmt.Printf("[%s] %s | %d views | theme %s\n", w.ID, w.Name, w.Views, w.Style.Theme)
				fmt.Printf("    Feeds: %s\n", feedNames(w.FeedIDs))
				fmt.Printf("    %s\n\n", w.EmbedCode)
			}
			return nil
		},
	}
}

func widgetsGenerateCmd() *cobra.Command {
	var in feeds.WidgetInput
	var theme string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an embeddable widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			in.Theme = models.WidgetTheme(theme)
			w, err := feedCtl.GenerateWidget(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Widget created: [%s] %s\n\n", w.ID, w.Name)
			fmt.Println(w.EmbedCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Widget name (required)")
	cmd.Flags().StringSliceVar(&in.FeedIDs, "feed", nil, "Feed id (repeatable, required)")
	cmd.Flags().StringVar(&in.BundleID, "bundle", "", "Bundle id")
	cmd.Flags().StringVar(&theme, "theme", string(models.ThemeLight), "Theme (light, dark, custom)")
	return cmd
}

func widgetsViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <widget-id>",
		Short: "Record one widget impression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			w, err := feedCtl.RecordWidgetView(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Widget %s: %d views\n", w.ID, w.Views)
			return nil
		},
	}
}

func widgetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <widget-id>",
		Short: "Delete a widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			deleted, err := feedCtl.DeleteWidget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if deleted {
				fmt.Printf("Widget %s deleted\n", args[0])
			}
			return nil
		},
	}
}
