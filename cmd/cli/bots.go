package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatzia/internal/controller/chatbot"
	"github.com/chatzia/internal/models"
)

// ============ CHATBOT COMMANDS ============

func botsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Chatbot management commands",
	}

	cmd.AddCommand(botsListCmd())
	cmd.AddCommand(botsCreateCmd())
	cmd.AddCommand(botsUpdateCmd())
	cmd.AddCommand(botsIntegrationCmd())
	return cmd
}

func printBot(b models.Chatbot) {
	fmt.Printf("[%s] %s (%s)\n", b.ID, b.Name, b.Status)
	if b.Description != "" {
		fmt.Printf("    %s\n", truncateStr(b.Description, 100))
	}
	fmt.Printf("    Language: %s | Personality: %s | Conversations: %d\n", b.Language, b.Personality, b.ConversationsCount)
	fmt.Printf("    WhatsApp: %s | Telegram: %s\n", onOff(b.Integrations.WhatsApp), onOff(b.Integrations.Telegram))
	k := b.Knowledge
	if len(k.Files)+len(k.URLs)+len(k.FAQs) > 0 || k.Text != "" {
		fmt.Printf("    Knowledge: %d files, %d urls, %d faqs, %d chars of text\n", len(k.Files), len(k.URLs), len(k.FAQs), len(k.Text))
	}
}

func botsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chatbots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}
			bots := botCtl.State().Bots
			fmt.Printf("\n=== Chatbots (%d) ===\n\n", len(bots))
			for _, b := range bots {
				printBot(b)
				fmt.Println()
			}
			return nil
		},
	}
}

func knowledgeFromFlags(urls []string, faqs []string, text string) (*models.Knowledge, error) {
	if len(urls) == 0 && len(faqs) == 0 && text == "" {
		return nil, nil
	}
	k := models.EmptyKnowledge()
	k.URLs = append(k.URLs, urls...)
	k.Text = text
	for _, raw := range faqs {
		q, a, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("faq %q must look like question=answer", raw)
		}
		k.FAQs = append(k.FAQs, models.FAQ{Question: strings.TrimSpace(q), Answer: strings.TrimSpace(a)})
	}
	return &k, nil
}

func botsCreateCmd() *cobra.Command {
	var in chatbot.BotInput
	var urls, faqs []string
	var text string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a chatbot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}
			k, err := knowledgeFromFlags(urls, faqs, text)
			if err != nil {
				return err
			}
			in.Knowledge = k

			b, err := botCtl.CreateBot(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Chatbot created:\n")
			printBot(b)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Bot name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Bot description")
	cmd.Flags().StringVar(&in.Language, "language", "", "Reply language (default from config)")
	cmd.Flags().StringVar(&in.Personality, "personality", "", "Personality (default from config)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "Knowledge URL (repeatable)")
	cmd.Flags().StringArrayVar(&faqs, "faq", nil, "Knowledge FAQ as question=answer (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Knowledge text")
	return cmd
}

func botsUpdateCmd() *cobra.Command {
	var name, description, status, language, personality, text string
	var urls, faqs []string

	cmd := &cobra.Command{
		Use:   "update <bot-id>",
		Short: "Update chatbot fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}

			var patch models.ChatbotPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("status") {
				s := models.BotStatus(status)
				patch.Status = &s
			}
			if flags.Changed("language") {
				patch.Language = &language
			}
			if flags.Changed("personality") {
				patch.Personality = &personality
			}
			if flags.Changed("url") || flags.Changed("faq") || flags.Changed("text") {
				k, err := knowledgeFromFlags(urls, faqs, text)
				if err != nil {
					return err
				}
				if k == nil {
					empty := models.EmptyKnowledge()
					k = &empty
				}
				patch.Knowledge = k
			}

			b, err := botCtl.UpdateBot(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printBot(b)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Bot name")
	cmd.Flags().StringVar(&description, "description", "", "Bot description")
	cmd.Flags().StringVar(&status, "status", "", "Status (active, inactive)")
	cmd.Flags().StringVar(&language, "language", "", "Reply language")
	cmd.Flags().StringVar(&personality, "personality", "", "Personality")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "Replace knowledge URLs (repeatable)")
	cmd.Flags().StringArrayVar(&faqs, "faq", nil, "Replace knowledge FAQs, question=answer (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Replace knowledge text")
	return cmd
}

func botsIntegrationCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "integration <bot-id> <whatsapp|telegram> <on|off>",
		Short:     "Enable or disable a channel integration",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{string(models.ChannelWhatsApp), string(models.ChannelTelegram)},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch strings.ToLower(args[2]) {
			case "on", "true", "enable":
				enabled = true
			case "off", "false", "disable":
			default:
				return fmt.Errorf("expected on or off, got %q", args[2])
			}

			if err := loadBots(cmd); err != nil {
				return err
			}
			b, err := botCtl.SetIntegration(cmd.Context(), args[0], models.Channel(strings.ToLower(args[1])), enabled)
			if err != nil {
				return err
			}
			printBot(b)
			return nil
		},
	}
}

// ============ CONVERSATION COMMANDS ============

func conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Chatbot conversation commands",
	}

	cmd.AddCommand(conversationsListCmd())
	cmd.AddCommand(conversationsAddCmd())
	cmd.AddCommand(conversationsReplyCmd())
	cmd.AddCommand(conversationsCloseCmd())
	return cmd
}

func printConversation(cv models.Conversation) {
	ref := botCtl.ResolveBot(cv.BotID)
	fmt.Printf("[%s] %s | %s | %s | %s\n", cv.ID, ref.Name, cv.Channel, cv.Status, cv.CreatedAt.Format("2006-01-02 15:04"))
	for _, m := range cv.Messages {
		fmt.Printf("    %-4s %s\n", m.Role+":", truncateStr(m.Content, 100))
	}
}

func conversationsListCmd() *cobra.Command {
	var botID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}

			convs := botCtl.State().Conversations
			if botID != "" {
				convs = botCtl.ConversationsFor(botID)
			}
			fmt.Printf("\n=== Conversations (%d) ===\n\n", len(convs))
			for _, cv := range convs {
				printConversation(cv)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot", "", "Only conversations of this bot")
	return cmd
}

func conversationsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <bot-id> <message>",
		Short: "Start a web conversation with a user message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}
			cv, err := botCtl.AddConversation(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printConversation(cv)
			return nil
		},
	}
}

func conversationsReplyCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "reply <conversation-id> <message>",
		Short: "Append a message to a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}
			cv, err := botCtl.AppendMessage(cmd.Context(), args[0], models.MessageRole(role), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printConversation(cv)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(models.RoleBot), "Message author (user, bot)")
	return cmd
}

func conversationsCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <conversation-id>",
		Short: "Close a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadBots(cmd); err != nil {
				return err
			}
			cv, err := botCtl.CloseConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Conversation %s is now %s\n", cv.ID, cv.Status)
			return nil
		},
	}
}
