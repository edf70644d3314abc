package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BotStatus represents whether a chatbot answers
type BotStatus string

const (
	BotStatusActive   BotStatus = "active"
	BotStatusInactive BotStatus = "inactive"
)

// KnowledgeFile describes an uploaded training document
type KnowledgeFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// KnowledgeFiles is stored as a JSON text column
type KnowledgeFiles []KnowledgeFile

func (f KnowledgeFiles) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	return valueJSON([]KnowledgeFile(f))
}

func (f *KnowledgeFiles) Scan(value interface{}) error {
	return scanJSON(value, f, KnowledgeFiles{})
}

// FAQ is a question/answer pair the bot is trained on
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQs is stored as a JSON text column
type FAQs []FAQ

func (f FAQs) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	return valueJSON([]FAQ(f))
}

func (f *FAQs) Scan(value interface{}) error {
	return scanJSON(value, f, FAQs{})
}

// Knowledge is the training corpus attached to one chatbot.
// Relationally it is its own row keyed by BotID; in the blob store it is embedded.
type Knowledge struct {
	ID    string         `gorm:"primaryKey;size:64" json:"-"`
	BotID string         `gorm:"size:64;uniqueIndex" json:"-"`
	Files KnowledgeFiles `gorm:"type:text" json:"files"`
	URLs  StringSlice    `gorm:"type:text" json:"urls"`
	FAQs  FAQs           `gorm:"type:text" json:"faqs"`
	Text  string         `gorm:"type:text" json:"text"`
}

func (Knowledge) TableName() string { return "knowledge" }

func (k *Knowledge) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

// EmptyKnowledge returns a knowledge record with non-nil collections
func EmptyKnowledge() Knowledge {
	return Knowledge{
		Files: KnowledgeFiles{},
		URLs:  StringSlice{},
		FAQs:  FAQs{},
	}
}

// Integrations holds the per-channel enable flags
type Integrations struct {
	WhatsApp bool `gorm:"column:whatsapp" json:"whatsapp"`
	Telegram bool `gorm:"column:telegram" json:"telegram"`
}

// Chatbot is a configured conversational agent
type Chatbot struct {
	ID                 string       `gorm:"primaryKey;size:64" json:"id"`
	Name               string       `gorm:"size:255;not null" json:"name"`
	Description        string       `gorm:"type:text" json:"description"`
	Status             BotStatus    `gorm:"size:20;default:'active'" json:"status"`
	Language           string       `gorm:"size:10" json:"language"`
	Personality        string       `gorm:"size:50" json:"personality"`
	Knowledge          Knowledge    `gorm:"foreignKey:BotID;references:ID" json:"knowledge"`
	Integrations       Integrations `gorm:"embedded;embeddedPrefix:integration_" json:"integrations"`
	ConversationsCount int          `json:"conversationsCount"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

func (Chatbot) TableName() string { return "chatbots" }

func (b *Chatbot) GetID() string            { return b.ID }
func (b *Chatbot) SetID(id string)          { b.ID = id }
func (b *Chatbot) SetCreatedAt(t time.Time) { b.CreatedAt = t }
func (b *Chatbot) SetUpdatedAt(t time.Time) { b.UpdatedAt = t }

// ChatbotPatch names the chatbot fields to change; nil fields are left alone
type ChatbotPatch struct {
	Name               *string
	Description        *string
	Status             *BotStatus
	Language           *string
	Personality        *string
	Knowledge          *Knowledge
	Integrations       *Integrations
	ConversationsCount *int
}

// Apply merges the patch onto b. A knowledge replacement keeps the stored row identity.
func (p ChatbotPatch) Apply(b *Chatbot) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Language != nil {
		b.Language = *p.Language
	}
	if p.Personality != nil {
		b.Personality = *p.Personality
	}
	if p.Knowledge != nil {
		k := *p.Knowledge
		k.ID, k.BotID = b.Knowledge.ID, b.Knowledge.BotID
		b.Knowledge = k
	}
	if p.Integrations != nil {
		b.Integrations = *p.Integrations
	}
	if p.ConversationsCount != nil {
		b.ConversationsCount = *p.ConversationsCount
	}
}

// MessageRole identifies who sent a message
type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleBot  MessageRole = "bot"
)

// Message is one entry of a conversation
type Message struct {
	ID             string      `gorm:"primaryKey;size:64" json:"id"`
	ConversationID string      `gorm:"size:64;index" json:"-"`
	Role           MessageRole `gorm:"size:10" json:"role"`
	Content        string      `gorm:"type:text" json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	Position       int         `json:"-"`
}

func (Message) TableName() string { return "messages" }

// NewMessage creates a message with a fresh id
func NewMessage(role MessageRole, content string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: at}
}

// ConversationStatus represents whether a conversation is open
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// Channel is where a conversation takes place
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// Conversation is an ordered exchange between a user and one chatbot
type Conversation struct {
	ID        string             `gorm:"primaryKey;size:64" json:"id"`
	BotID     string             `gorm:"size:64;index" json:"botId"`
	Messages  []Message          `gorm:"foreignKey:ConversationID" json:"messages"`
	Status    ConversationStatus `gorm:"size:20;default:'active'" json:"status"`
	Channel   Channel            `gorm:"size:20;default:'web'" json:"channel"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) GetID() string            { return c.ID }
func (c *Conversation) SetID(id string)          { c.ID = id }
func (c *Conversation) SetCreatedAt(t time.Time) { c.CreatedAt = t }
func (c *Conversation) SetUpdatedAt(t time.Time) { c.UpdatedAt = t }

// BeforeSave records message order so it survives the round trip through rows
func (c *Conversation) BeforeSave(tx *gorm.DB) error {
	for i := range c.Messages {
		c.Messages[i].Position = i
	}
	return nil
}

// ConversationPatch changes a conversation; Append adds messages at the end
type ConversationPatch struct {
	Status  *ConversationStatus
	Channel *Channel
	Append  []Message
}

// Apply merges the patch onto c
func (p ConversationPatch) Apply(c *Conversation) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Channel != nil {
		c.Channel = *p.Channel
	}
	c.Messages = append(c.Messages, p.Append...)
}
