package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatzia/internal/config"
	"github.com/chatzia/internal/controller"
	"github.com/chatzia/internal/controller/chatbot"
	"github.com/chatzia/internal/controller/feeds"
	"github.com/chatzia/pkg/logger"
)

var (
	cfgFile   string
	assumeYes bool
	cfg       *config.Config
	log       *logger.Logger
	backend   *storageBackend
	feedCtl   *feeds.Controller
	botCtl    *chatbot.Controller
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatzia",
		Short: "RSS feed and chatbot dashboards",
		Long: `Manage RSS feeds, bundles and embeddable widgets, and configure
chatbots and their conversations, on a key-value or relational store.`,
		SilenceUsage:       true,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: shutdownApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(itemsCmd())
	rootCmd.AddCommand(bundlesCmd())
	rootCmd.AddCommand(widgetsCmd())
	rootCmd.AddCommand(botsCmd())
	rootCmd.AddCommand(conversationsCmd())
	rootCmd.AddCommand(statsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	backend, err = openStorage(cmd.Context(), cfg.Storage, log)
	if err != nil {
		return err
	}

	var confirmer controller.Confirmer = stdinConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
	if assumeYes {
		confirmer = controller.AlwaysConfirm
	}

	feedCtl = feeds.New(backend.feeds, feeds.Options{
		DefaultRefreshInterval: cfg.Feeds.DefaultRefreshInterval,
		EmbedBaseURL:           cfg.Widgets.EmbedBaseURL,
		WidgetHeight:           cfg.Widgets.Height,
		Confirmer:              confirmer,
	}, log)
	botCtl = chatbot.New(backend.chat, chatbot.Options{
		DefaultLanguage:    cfg.Chatbots.DefaultLanguage,
		DefaultPersonality: cfg.Chatbots.DefaultPersonality,
	}, log)

	return nil
}

func shutdownApp(cmd *cobra.Command, args []string) error {
	if backend == nil {
		return nil
	}
	return backend.Close()
}

// stdinConfirmer asks on the terminal and accepts "y" or "yes"
type stdinConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (c stdinConfirmer) Confirm(ctx context.Context, prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func loadFeeds(cmd *cobra.Command) error {
	return feedCtl.Load(cmd.Context())
}

func loadBots(cmd *cobra.Command) error {
	return botCtl.Load(cmd.Context())
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadFeeds(cmd); err != nil {
				return err
			}
			if err := loadBots(cmd); err != nil {
				return err
			}

			fs := feedCtl.Stats()
			bs := botCtl.Stats()

			fmt.Printf("\n=== Feeds ===\n")
			fmt.Printf("Active Feeds:   %d\n", fs.ActiveFeeds)
			fmt.Printf("Total Items:    %d\n", fs.TotalItems)
			fmt.Printf("Items Today:    %d\n", fs.TodayItems)
			fmt.Printf("Bundles:        %d\n", fs.Bundles)
			fmt.Printf("Widgets:        %d (%d views)\n", fs.Widgets, fs.TotalViews)

			fmt.Printf("\n=== Chatbots ===\n")
			fmt.Printf("Bots:           %d (%d active)\n", bs.TotalBots, bs.ActiveBots)
			fmt.Printf("Conversations:  %d (%d open)\n", bs.TotalConversations, bs.OpenConversations)
			return nil
		},
	}
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
