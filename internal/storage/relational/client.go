package relational

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chatzia/internal/models"
	applog "github.com/chatzia/pkg/logger"
)

// Config selects the database
type Config struct {
	Driver string // sqlite or postgres
	DSN    string
}

// Client owns one gorm handle. It connects on first use or on Connect and
// must be released with Disconnect.
type Client struct {
	cfg Config
	log *applog.Logger

	mu sync.Mutex
	db *gorm.DB
}

// New creates an unconnected client
func New(cfg Config, log *applog.Logger) *Client {
	return &Client{cfg: cfg, log: log.WithComponent("relational")}
}

// Connect opens the database if it is not open yet
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.DB(ctx)
	return err
}

// DB returns the connected handle, opening it lazily
func (c *Client) DB(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.WithContext(ctx), nil
	}

	dialector, err := c.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c.log.Info().Str("driver", c.cfg.Driver).Msg("Database connected")
	c.db = db
	return db.WithContext(ctx), nil
}

func (c *Client) dialector() (gorm.Dialector, error) {
	switch c.cfg.Driver {
	case "", "sqlite":
		if err := ensureDir(c.cfg.DSN); err != nil {
			return nil, err
		}
		return sqlite.Open(c.cfg.DSN), nil
	case "postgres":
		return postgres.Open(c.cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.cfg.Driver)
	}
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}

// Migrate creates or updates the tables for the given models
func (c *Client) Migrate(ctx context.Context, dst ...interface{}) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return db.AutoMigrate(dst...)
}

// MigrateAll migrates every dashboard table
func (c *Client) MigrateAll(ctx context.Context) error {
	return c.Migrate(ctx, AllModels()...)
}

// Disconnect closes the database connection; the client may reconnect later
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AllModels lists the tables of both dashboards
func AllModels() []interface{} {
	return []interface{}{
		&models.Feed{},
		&models.FeedItem{},
		&models.Bundle{},
		&models.Widget{},
		&models.Chatbot{},
		&models.Knowledge{},
		&models.Conversation{},
		&models.Message{},
	}
}
