// Package chatbot is the view-state controller of the chatbot admin panel.
package chatbot

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatzia/internal/controller"
	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/pkg/logger"
)

// View is a screen of the admin panel
type View string

const (
	ViewDashboard     View = "dashboard"
	ViewCreate        View = "create"
	ViewConversations View = "conversations"
	ViewIntegrations  View = "integrations"
	ViewAnalytics     View = "analytics"
	ViewSettings      View = "settings"
)

// DeletedBotName is shown for conversations whose bot no longer exists
const DeletedBotName = "(deleted bot)"

// Options holds the defaults applied to new bots
type Options struct {
	DefaultLanguage    string
	DefaultPersonality string
}

// State is a snapshot of everything the panel renders
type State struct {
	controller.Status[View]
	Bots          []models.Chatbot
	Conversations []models.Conversation
	SelectedBotID string
}

// Controller owns the admin panel state and every mutation of it
type Controller struct {
	repo *storage.ChatRepository
	opts Options
	log  *logger.Logger
	core *controller.Core[View]
	now  func() time.Time

	// guarded by core
	bots          []models.Chatbot
	conversations []models.Conversation
	selected      string
}

// New creates a controller with empty state on the dashboard view
func New(repo *storage.ChatRepository, opts Options, log *logger.Logger) *Controller {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "es"
	}
	if opts.DefaultPersonality == "" {
		opts.DefaultPersonality = "professional"
	}
	log = log.WithComponent("chatbot")
	return &Controller{
		repo:          repo,
		opts:          opts,
		log:           log,
		core:          controller.NewCore(log, ViewDashboard, ViewCreate, ViewConversations, ViewIntegrations, ViewAnalytics, ViewSettings),
		now:           time.Now,
		bots:          []models.Chatbot{},
		conversations: []models.Conversation{},
	}
}

// State returns a copy of the current state
func (c *Controller) State() State {
	var s State
	c.core.Read(func(st controller.Status[View]) {
		s = State{
			Status:        st,
			Bots:          slices.Clone(c.bots),
			Conversations: slices.Clone(c.conversations),
			SelectedBotID: c.selected,
		}
	})
	return s
}

func (c *Controller) Navigate(view View) error { return c.core.Navigate(view) }
func (c *Controller) DismissError()            { c.core.DismissError() }

type snapshot struct {
	bots          []models.Chatbot
	conversations []models.Conversation
}

// Load fetches bots and conversations in parallel and replaces the state
func (c *Controller) Load(ctx context.Context) error {
	_, err := controller.Mutate(ctx, c.core, "load", func(ctx context.Context) (snapshot, error) {
		var s snapshot
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			s.bots, err = c.repo.Bots.GetAll(ctx)
			return err
		})
		g.Go(func() (err error) {
			s.conversations, err = c.repo.Conversations.GetAll(ctx)
			return err
		})
		return s, g.Wait()
	}, func(s snapshot) {
		c.bots, c.conversations = s.bots, s.conversations
	})
	return err
}

func (c *Controller) invalid(op, format string, args ...interface{}) error {
	return c.core.Fail(op, fmt.Errorf("%w: %s", storage.ErrValidation, fmt.Sprintf(format, args...)))
}

func (c *Controller) bot(id string) (models.Chatbot, bool) {
	var (
		b  models.Chatbot
		ok bool
	)
	c.core.Read(func(controller.Status[View]) {
		b, ok = controller.Find(c.bots, id)
	})
	return b, ok
}

// BotInput is the form data of a new chatbot
type BotInput struct {
	Name        string
	Description string
	Language    string
	Personality string
	Knowledge   *models.Knowledge
}

// CreateBot stores an active bot with no integrations enabled
func (c *Controller) CreateBot(ctx context.Context, in BotInput) (models.Chatbot, error) {
	const op = "create bot"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Chatbot{}, c.invalid(op, "bot name is required")
	}

	bot := models.Chatbot{
		Name:               name,
		Description:        in.Description,
		Status:             models.BotStatusActive,
		Language:           c.opts.DefaultLanguage,
		Personality:        c.opts.DefaultPersonality,
		Knowledge:          models.EmptyKnowledge(),
		Integrations:       models.Integrations{},
		ConversationsCount: 0,
	}
	if in.Language != "" {
		bot.Language = in.Language
	}
	if in.Personality != "" {
		bot.Personality = in.Personality
	}
	if in.Knowledge != nil {
		bot.Knowledge = *in.Knowledge
	}

	created, err := controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Chatbot, error) {
		return c.repo.Bots.Create(ctx, bot)
	}, func(b models.Chatbot) {
		c.bots = append(slices.Clone(c.bots), b)
	})
	if err != nil {
		return models.Chatbot{}, err
	}

	c.core.Write(func(st *controller.Status[View]) {
		st.View = ViewDashboard
	})
	c.log.Info().Str("bot_id", created.ID).Str("name", created.Name).Msg("Chatbot created")
	return created, nil
}

// UpdateBot applies patch to the stored bot and replaces it in state
func (c *Controller) UpdateBot(ctx context.Context, id string, patch storage.Patch[models.Chatbot]) (models.Chatbot, error) {
	const op = "update bot"

	if p, ok := patch.(models.ChatbotPatch); ok {
		if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
			return models.Chatbot{}, c.invalid(op, "bot name is required")
		}
		if p.Status != nil && *p.Status != models.BotStatusActive && *p.Status != models.BotStatusInactive {
			return models.Chatbot{}, c.invalid(op, "unknown bot status %q", *p.Status)
		}
	}

	return controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Chatbot, error) {
		return c.repo.Bots.Update(ctx, id, patch)
	}, func(b models.Chatbot) {
		c.bots = controller.Replace(c.bots, b)
	})
}

// SetIntegration enables or disables one channel on the stored bot
func (c *Controller) SetIntegration(ctx context.Context, id string, channel models.Channel, enabled bool) (models.Chatbot, error) {
	var set func(*models.Integrations)
	switch channel {
	case models.ChannelWhatsApp:
		set = func(i *models.Integrations) { i.WhatsApp = enabled }
	case models.ChannelTelegram:
		set = func(i *models.Integrations) { i.Telegram = enabled }
	default:
		return models.Chatbot{}, c.invalid("set integration", "channel %q has no integration", channel)
	}

	bot, err := c.UpdateBot(ctx, id, storage.PatchFunc[models.Chatbot](func(b *models.Chatbot) {
		set(&b.Integrations)
	}))
	if err != nil {
		return models.Chatbot{}, err
	}
	c.log.Info().Str("bot_id", id).Str("channel", string(channel)).Bool("enabled", enabled).Msg("Integration updated")
	return bot, nil
}

// AddConversation opens a web conversation with one user message and counts
// it on the bot. The two writes are independent: if the count update fails,
// the conversation stays stored.
func (c *Controller) AddConversation(ctx context.Context, botID, content string) (models.Conversation, error) {
	const op = "add conversation"

	if _, ok := c.bot(botID); !ok {
		return models.Conversation{}, c.core.Fail(op, fmt.Errorf("%w: chatbot %q", storage.ErrNotFound, botID))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Conversation{}, c.invalid(op, "message content is required")
	}

	conv := models.Conversation{
		BotID:    botID,
		Messages: []models.Message{models.NewMessage(models.RoleUser, content, c.now().UTC())},
		Status:   models.ConversationActive,
		Channel:  models.ChannelWeb,
	}
	created, err := controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Conversation, error) {
		return c.repo.Conversations.Create(ctx, conv)
	}, func(cv models.Conversation) {
		c.conversations = append(slices.Clone(c.conversations), cv)
	})
	if err != nil {
		return models.Conversation{}, err
	}

	if _, err := c.UpdateBot(ctx, botID, storage.PatchFunc[models.Chatbot](func(b *models.Chatbot) {
		b.ConversationsCount++
	})); err != nil {
		return created, err
	}

	c.log.Info().Str("bot_id", botID).Str("conversation_id", created.ID).Msg("Conversation added")
	return created, nil
}

// AppendMessage adds a message to the end of a stored conversation
func (c *Controller) AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) (models.Conversation, error) {
	const op = "append message"

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Conversation{}, c.invalid(op, "message content is required")
	}
	if role != models.RoleUser && role != models.RoleBot {
		return models.Conversation{}, c.invalid(op, "unknown role %q", role)
	}

	patch := models.ConversationPatch{
		Append: []models.Message{models.NewMessage(role, content, c.now().UTC())},
	}
	return controller.Mutate(ctx, c.core, op, func(ctx context.Context) (models.Conversation, error) {
		return c.repo.Conversations.Update(ctx, conversationID, patch)
	}, func(cv models.Conversation) {
		c.conversations = controller.Replace(c.conversations, cv)
	})
}

// CloseConversation marks a conversation closed
func (c *Controller) CloseConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	closed := models.ConversationClosed
	return controller.Mutate(ctx, c.core, "close conversation", func(ctx context.Context) (models.Conversation, error) {
		return c.repo.Conversations.Update(ctx, conversationID, models.ConversationPatch{Status: &closed})
	}, func(cv models.Conversation) {
		c.conversations = controller.Replace(c.conversations, cv)
	})
}

// SelectBot marks a bot as selected; an empty id clears the selection
func (c *Controller) SelectBot(id string) error {
	if id != "" {
		if _, ok := c.bot(id); !ok {
			return c.core.Fail("select bot", fmt.Errorf("%w: chatbot %q", storage.ErrNotFound, id))
		}
	}
	c.core.Write(func(*controller.Status[View]) {
		c.selected = id
	})
	return nil
}

// ConversationsFor lists the loaded conversations of one bot, newest first
func (c *Controller) ConversationsFor(botID string) []models.Conversation {
	out := []models.Conversation{}
	c.core.Read(func(controller.Status[View]) {
		for _, cv := range c.conversations {
			if cv.BotID == botID {
				out = append(out, cv)
			}
		}
	})
	slices.SortStableFunc(out, func(a, b models.Conversation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// BotRef is a bot reference resolved against the loaded bots
type BotRef struct {
	ID      string
	Name    string
	Missing bool
}

// ResolveBot maps a conversation's botId to the bot name
func (c *Controller) ResolveBot(id string) BotRef {
	if b, ok := c.bot(id); ok {
		return BotRef{ID: id, Name: b.Name}
	}
	return BotRef{ID: id, Name: DeletedBotName, Missing: true}
}

// Stats are the panel counters
type Stats struct {
	TotalBots          int
	ActiveBots         int
	TotalConversations int
	OpenConversations  int
}

func (c *Controller) Stats() Stats {
	var s Stats
	c.core.Read(func(controller.Status[View]) {
		s.TotalBots = len(c.bots)
		for _, b := range c.bots {
			if b.Status == models.BotStatusActive {
				s.ActiveBots++
			}
		}
		s.TotalConversations = len(c.conversations)
		for _, cv := range c.conversations {
			if cv.Status == models.ConversationActive {
				s.OpenConversations++
			}
		}
	})
	return s
}
