package chatbot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/internal/storage/blob"
	"github.com/chatzia/internal/storage/kv"
	"github.com/chatzia/internal/storage/relational"
	"github.com/chatzia/pkg/logger"
)

func blobRepo(t *testing.T) *storage.ChatRepository {
	return blob.NewChatRepository(kv.NewMemory(), logger.Nop())
}

func relationalRepo(t *testing.T) *storage.ChatRepository {
	client := relational.New(relational.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "chat.db")}, logger.Nop())
	t.Cleanup(func() { client.Disconnect() })
	if err := client.MigrateAll(context.Background()); err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}
	return relational.NewChatRepository(client, logger.Nop())
}

var backends = []struct {
	name string
	repo func(t *testing.T) *storage.ChatRepository
}{
	{name: "blob", repo: blobRepo},
	{name: "relational", repo: relationalRepo},
}

func TestCreateBotDefaults(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			c := New(bk.repo(t), Options{}, logger.Nop())
			c.Navigate(ViewCreate)

			bot, err := c.CreateBot(ctx, BotInput{Name: "Sales Bot", Description: "desc"})
			if err != nil {
				t.Fatalf("CreateBot: %v", err)
			}

			want := models.Chatbot{
				ID:                 bot.ID,
				Name:               "Sales Bot",
				Description:        "desc",
				Status:             models.BotStatusActive,
				Language:           "es",
				Personality:        "professional",
				Knowledge:          models.EmptyKnowledge(),
				Integrations:       models.Integrations{WhatsApp: false, Telegram: false},
				ConversationsCount: 0,
			}
			opts := cmpopts.IgnoreFields(models.Chatbot{}, "CreatedAt", "UpdatedAt")
			knowledgeIDs := cmpopts.IgnoreFields(models.Knowledge{}, "ID", "BotID")
			if diff := cmp.Diff(want, bot, opts, knowledgeIDs); diff != "" {
				t.Errorf("bot mismatch (-want +got):\n%s", diff)
			}
			if bot.ID == "" {
				t.Error("no id assigned")
			}
			if c.State().View != ViewDashboard {
				t.Errorf("view = %s", c.State().View)
			}

			reloaded := New(c.repo, Options{}, logger.Nop())
			if err := reloaded.Load(ctx); err != nil {
				t.Fatal(err)
			}
			bots := reloaded.State().Bots
			if len(bots) != 1 {
				t.Fatalf("loaded bots = %+v", bots)
			}
			if diff := cmp.Diff(want, bots[0], opts, knowledgeIDs); diff != "" {
				t.Errorf("loaded bot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateBotRequiresName(t *testing.T) {
	c := New(blobRepo(t), Options{}, logger.Nop())
	if _, err := c.CreateBot(context.Background(), BotInput{Name: " "}); !errors.Is(err, storage.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if st := c.State(); len(st.Bots) != 0 || st.Error == "" {
		t.Errorf("state = %+v", st)
	}
}

func TestCreateBotUsesConfiguredDefaults(t *testing.T) {
	c := New(blobRepo(t), Options{DefaultLanguage: "en", DefaultPersonality: "friendly"}, logger.Nop())
	bot, err := c.CreateBot(context.Background(), BotInput{Name: "Support"})
	if err != nil {
		t.Fatal(err)
	}
	if bot.Language != "en" || bot.Personality != "friendly" {
		t.Errorf("language/personality = %s/%s", bot.Language, bot.Personality)
	}
}

func TestAddConversation(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			repo := bk.repo(t)
			c := New(repo, Options{}, logger.Nop())
			bot, err := c.CreateBot(ctx, BotInput{Name: "Sales Bot", Description: "desc"})
			if err != nil {
				t.Fatal(err)
			}

			conv, err := c.AddConversation(ctx, bot.ID, "hello")
			if err != nil {
				t.Fatalf("AddConversation: %v", err)
			}
			if conv.BotID != bot.ID || conv.Channel != models.ChannelWeb || conv.Status != models.ConversationActive {
				t.Errorf("conversation = %+v", conv)
			}
			if len(conv.Messages) != 1 || conv.Messages[0].Role != models.RoleUser || conv.Messages[0].Content != "hello" {
				t.Errorf("messages = %+v", conv.Messages)
			}

			st := c.State()
			if len(st.Conversations) != 1 {
				t.Errorf("state conversations = %+v", st.Conversations)
			}
			if st.Bots[0].ConversationsCount != 1 {
				t.Errorf("state count = %d, want 1", st.Bots[0].ConversationsCount)
			}

			stored, _ := repo.Bots.GetAll(ctx)
			if stored[0].ConversationsCount != 1 || stored[0].Name != "Sales Bot" {
				t.Errorf("stored bot = %+v", stored[0])
			}
			convs, _ := repo.Conversations.GetAll(ctx)
			if len(convs) != 1 || len(convs[0].Messages) != 1 {
				t.Errorf("stored conversations = %+v", convs)
			}
		})
	}
}

func TestAddConversationRejections(t *testing.T) {
	ctx := context.Background()
	c := New(blobRepo(t), Options{}, logger.Nop())
	bot, _ := c.CreateBot(ctx, BotInput{Name: "Sales Bot"})

	if _, err := c.AddConversation(ctx, "ghost", "hello"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown bot err = %v", err)
	}
	if _, err := c.AddConversation(ctx, bot.ID, "   "); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty content err = %v", err)
	}
	st := c.State()
	if len(st.Conversations) != 0 || st.Bots[0].ConversationsCount != 0 {
		t.Errorf("state changed: %+v", st)
	}
}

func TestSetIntegration(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			c := New(bk.repo(t), Options{}, logger.Nop())
			bot, _ := c.CreateBot(ctx, BotInput{Name: "Sales Bot"})

			updated, err := c.SetIntegration(ctx, bot.ID, models.ChannelTelegram, true)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(models.Integrations{Telegram: true}, updated.Integrations); diff != "" {
				t.Errorf("integrations (-want +got):\n%s", diff)
			}
			if updated.Name != "Sales Bot" || updated.Language != "es" {
				t.Errorf("unrelated fields changed: %+v", updated)
			}

			if _, err := c.SetIntegration(ctx, bot.ID, models.ChannelWeb, true); !errors.Is(err, storage.ErrValidation) {
				t.Errorf("web integration err = %v", err)
			}
			if _, err := c.SetIntegration(ctx, "ghost", models.ChannelWhatsApp, true); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("missing bot err = %v", err)
			}
		})
	}
}

func TestUpdateBotValidation(t *testing.T) {
	ctx := context.Background()
	c := New(blobRepo(t), Options{}, logger.Nop())
	bot, _ := c.CreateBot(ctx, BotInput{Name: "Sales Bot"})

	empty := ""
	if _, err := c.UpdateBot(ctx, bot.ID, models.ChatbotPatch{Name: &empty}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty name err = %v", err)
	}
	paused := models.BotStatus("paused")
	if _, err := c.UpdateBot(ctx, bot.ID, models.ChatbotPatch{Status: &paused}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("bad status err = %v", err)
	}

	inactive := models.BotStatusInactive
	got, err := c.UpdateBot(ctx, bot.ID, models.ChatbotPatch{Status: &inactive})
	if err != nil || got.Status != inactive {
		t.Fatalf("UpdateBot = %+v, %v", got, err)
	}
	if c.Stats().ActiveBots != 0 {
		t.Errorf("Stats().ActiveBots = %d", c.Stats().ActiveBots)
	}
}

func TestConversationMessagesAndClose(t *testing.T) {
	ctx := context.Background()
	c := New(blobRepo(t), Options{}, logger.Nop())
	bot, _ := c.CreateBot(ctx, BotInput{Name: "Sales Bot"})
	conv, _ := c.AddConversation(ctx, bot.ID, "hello")

	conv, err := c.AppendMessage(ctx, conv.ID, models.RoleBot, "hi, how can I help?")
	if err != nil {
		t.Fatal(err)
	}
	var contents []string
	for _, m := range conv.Messages {
		contents = append(contents, m.Content)
	}
	if diff := cmp.Diff([]string{"hello", "hi, how can I help?"}, contents); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}

	closed, err := c.CloseConversation(ctx, conv.ID)
	if err != nil || closed.Status != models.ConversationClosed || len(closed.Messages) != 2 {
		t.Fatalf("CloseConversation = %+v, %v", closed, err)
	}
	if got := c.Stats(); got.TotalConversations != 1 || got.OpenConversations != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestDanglingConversationReference(t *testing.T) {
	ctx := context.Background()
	repo := blobRepo(t)
	repo.Conversations.Create(ctx, models.Conversation{BotID: "gone", Channel: models.ChannelWeb})

	c := New(repo, Options{}, logger.Nop())
	if err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := c.ConversationsFor("gone"); len(got) != 1 {
		t.Fatalf("ConversationsFor = %+v", got)
	}
	want := BotRef{ID: "gone", Name: DeletedBotName, Missing: true}
	if diff := cmp.Diff(want, c.ResolveBot("gone")); diff != "" {
		t.Errorf("ResolveBot (-want +got):\n%s", diff)
	}
	if err := c.SelectBot("gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SelectBot err = %v", err)
	}
}
