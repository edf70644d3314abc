package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/internal/storage/kv"
	"github.com/chatzia/pkg/logger"
)

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s failingStore) Set(context.Context, string, string) error        { return s.err }
func (s failingStore) Close() error                                     { return nil }

func newFeeds(store kv.Store) *Collection[models.Feed, *models.Feed] {
	return NewCollection[models.Feed](store, storage.KeyFeeds, NewTimestampIDs(), logger.Nop())
}

func techNews() models.Feed {
	return models.Feed{
		Name:            "Tech News",
		SourceURL:       "https://example.com",
		SourceType:      models.SourceWebsite,
		Status:          models.FeedStatusActive,
		Filters:         models.FilterRules{},
		AutoRefresh:     true,
		RefreshInterval: 60,
	}
}

func TestTimestampIDsStrictlyIncrease(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := &TimestampIDs{now: func() time.Time { return fixed }}

	got := []string{g.Next(), g.Next(), g.Next()}
	want := []string{"1700000000000", "1700000000001", "1700000000002"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateThenGetAll(t *testing.T) {
	ctx := context.Background()
	feeds := newFeeds(kv.NewMemory())

	created, err := feeds.Create(ctx, techNews())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created feed has no id")
	}
	if created.CreatedAt.IsZero() {
		t.Error("createdAt not stamped")
	}

	all, err := feeds.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if diff := cmp.Diff([]models.Feed{created}, all); diff != "" {
		t.Errorf("GetAll mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateAssignsFreshIDs(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	store.Set(ctx, storage.KeyFeeds, `[{"id":"1700000000000","name":"old"}]`)

	feeds := newFeeds(store)
	feeds.ids.now = func() time.Time { return time.UnixMilli(1700000000000) }

	seen := map[string]bool{"1700000000000": true}
	for i := 0; i < 5; i++ {
		f, err := feeds.Create(ctx, techNews())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[f.ID] {
			t.Fatalf("id %s reused", f.ID)
		}
		seen[f.ID] = true
	}
}

func TestCreateRejectsDuplicatePresetID(t *testing.T) {
	ctx := context.Background()
	feeds := newFeeds(kv.NewMemory())

	f := techNews()
	f.ID = "w1"
	if _, err := feeds.Create(ctx, f); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := feeds.Create(ctx, f); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("duplicate id err = %v, want ErrValidation", err)
	}
}

func TestUpdatePreservesUnnamedFields(t *testing.T) {
	ctx := context.Background()
	feeds := newFeeds(kv.NewMemory())
	created, _ := feeds.Create(ctx, techNews())

	paused := models.FeedStatusPaused
	updated, err := feeds.Update(ctx, created.ID, models.FeedPatch{Status: &paused})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Error("updatedAt moved backwards")
	}
	want := created
	want.Status = models.FeedStatusPaused
	want.UpdatedAt = updated.UpdatedAt
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Errorf("Update mismatch (-want +got):\n%s", diff)
	}

	all, _ := feeds.GetAll(ctx)
	if diff := cmp.Diff([]models.Feed{updated}, all); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateMissingLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	feeds := newFeeds(store)
	feeds.Create(ctx, techNews())
	before, _, _ := store.Get(ctx, storage.KeyFeeds)

	name := "x"
	_, err := feeds.Update(ctx, "nope", models.FeedPatch{Name: &name})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	after, _, _ := store.Get(ctx, storage.KeyFeeds)
	if before != after {
		t.Errorf("collection changed:\nbefore %s\nafter  %s", before, after)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	feeds := newFeeds(kv.NewMemory())
	a, _ := feeds.Create(ctx, techNews())
	b, _ := feeds.Create(ctx, techNews())

	if err := feeds.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := feeds.Delete(ctx, "absent"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}

	all, _ := feeds.GetAll(ctx)
	if diff := cmp.Diff([]models.Feed{b}, all); diff != "" {
		t.Errorf("after delete (-want +got):\n%s", diff)
	}
}

func TestGetAllMissingKeyIsEmpty(t *testing.T) {
	all, err := newFeeds(kv.NewMemory()).GetAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if all == nil || len(all) != 0 {
		t.Errorf("GetAll = %#v, want empty slice", all)
	}
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	feeds := newFeeds(failingStore{err: errors.New("quota exceeded")})

	all, err := feeds.GetAll(ctx)
	if !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("GetAll err = %v, want ErrPersistence", err)
	}
	if all == nil || len(all) != 0 {
		t.Errorf("GetAll on failure = %#v, want empty slice", all)
	}
	if _, err := feeds.Create(ctx, techNews()); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("Create err = %v, want ErrPersistence", err)
	}
	if err := feeds.Delete(ctx, "1"); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("Delete err = %v, want ErrPersistence", err)
	}
}

func TestCorruptDocumentIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	store.Set(ctx, storage.KeyFeeds, `[{"id":`)
	feeds := newFeeds(store)

	if _, err := feeds.GetAll(ctx); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("GetAll err = %v, want ErrPersistence", err)
	}
	if _, err := feeds.Create(ctx, techNews()); err == nil {
		t.Error("Create on corrupt document should fail")
	}
	raw, _, _ := store.Get(ctx, storage.KeyFeeds)
	if raw != `[{"id":` {
		t.Errorf("corrupt document was overwritten: %s", raw)
	}
}

func TestStoredFormatUsesCamelCase(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	newFeeds(store).Create(ctx, techNews())

	raw, _, _ := store.Get(ctx, storage.KeyFeeds)
	for _, field := range []string{`"sourceUrl":"https://example.com"`, `"autoRefresh":true`, `"itemCount":0`, `"filters":[]`} {
		if !strings.Contains(raw, field) {
			t.Errorf("stored document %s missing %s", raw, field)
		}
	}
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(kv.NewMemory(), logger.Nop())

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conv, err := repo.Conversations.Create(ctx, models.Conversation{
		BotID:    "b1",
		Status:   models.ConversationActive,
		Channel:  models.ChannelWeb,
		Messages: []models.Message{models.NewMessage(models.RoleUser, "hello", at)},
	})
	if err != nil {
		t.Fatal(err)
	}

	reply := models.NewMessage(models.RoleBot, "hi there", at.Add(time.Second))
	if _, err := repo.Conversations.Update(ctx, conv.ID, models.ConversationPatch{Append: []models.Message{reply}}); err != nil {
		t.Fatal(err)
	}

	all, _ := repo.Conversations.GetAll(ctx)
	if len(all) != 1 || len(all[0].Messages) != 2 {
		t.Fatalf("conversations = %+v", all)
	}
	if all[0].Messages[0].Content != "hello" || all[0].Messages[1].Content != "hi there" {
		t.Errorf("messages out of order: %+v", all[0].Messages)
	}
}
