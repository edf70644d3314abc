package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/chatzia/internal/storage"
	"github.com/chatzia/internal/storage/relational"
	"github.com/chatzia/pkg/logger"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "rssFeeds"); err != nil || ok {
		t.Fatalf("Get on unset key = ok %v, err %v", ok, err)
	}
	if err := s.Set(ctx, "rssFeeds", `[{"id":"1"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "bundles", `[]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "rssFeeds", `[]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, ok, err := s.Get(ctx, "rssFeeds")
	if err != nil || !ok || got != "[]" {
		t.Errorf("Get rssFeeds = %q, %v, %v", got, ok, err)
	}
	got, ok, err = s.Get(ctx, "bundles")
	if err != nil || !ok || got != "[]" {
		t.Errorf("Get bundles = %q, %v, %v", got, ok, err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Set(ctx, "k", "v"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSQL(t *testing.T) {
	client := relational.New(relational.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "kv.db"),
	}, logger.Nop())
	store := NewSQL(client)
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	exerciseStore(t, store)
}

// fakeSheets serves the subset of the Sheets values API the store uses
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]interface{}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := strings.Index(r.URL.Path, "/values/")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	rng := r.URL.Path[idx+len("/values/"):]

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(sheets.ValueRange{Range: rng, Values: f.rows})
	case http.MethodPut:
		var row int
		if _, err := fmt.Sscanf(rng, "Storage!A%d:", &row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var body sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for len(f.rows) < row {
			f.rows = append(f.rows, []interface{}{})
		}
		f.rows[row-1] = body.Values[0]
		json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{UpdatedRange: rng})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newFakeSheetsStore(t *testing.T) (*Sheets, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{rows: [][]interface{}{{"key", "value"}}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatal(err)
	}

	store := NewSheetsWithService(srv, SheetsConfig{
		SpreadsheetID:     "sheet-id",
		RequestsPerMinute: 6000,
	}, logger.Nop())
	return store, fake
}

func TestSheets(t *testing.T) {
	store, fake := newFakeSheetsStore(t)
	exerciseStore(t, store)

	want := [][]interface{}{
		{"key", "value"},
		{"rssFeeds", "[]"},
		{"bundles", "[]"},
	}
	if diff := cmp.Diff(want, fake.rows); diff != "" {
		t.Errorf("sheet rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSheetsSplitsLongValues(t *testing.T) {
	store, fake := newFakeSheetsStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", cellChars*2+10)
	if err := store.Set(ctx, "conversations", long); err != nil {
		t.Fatalf("Set long value: %v", err)
	}
	if n := len(fake.rows[1]); n != 4 {
		t.Fatalf("long value should use 3 value cells, row has %d cells", n)
	}
	for i, cell := range fake.rows[1][1:] {
		if l := len(cell.(string)); l > cellChars {
			t.Errorf("cell %d holds %d characters", i, l)
		}
	}
	got, ok, err := store.Get(ctx, "conversations")
	if err != nil || !ok || got != long {
		t.Fatalf("Get long value: ok %v, err %v, len %d", ok, err, len(got))
	}

	if err := store.Set(ctx, "conversations", "[]"); err != nil {
		t.Fatalf("Set short value: %v", err)
	}
	got, _, _ = store.Get(ctx, "conversations")
	if got != "[]" {
		t.Errorf("stale chunks left behind: got %d characters", len(got))
	}

	tooLong := strings.Repeat("x", cellChars*maxValueCells+1)
	err = store.Set(ctx, "conversations", tooLong)
	if !errors.Is(err, storage.ErrValidation) {
		t.Errorf("Set over row capacity = %v, want ErrValidation", err)
	}
	if got, _, _ := store.Get(ctx, "conversations"); got != "[]" {
		t.Error("rejected value must not be written")
	}
}

func TestSplitCells(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{value: "", want: []string{""}},
		{value: "abc", want: []string{"abc"}},
		{value: "abcdefg", want: []string{"abc", "def", "g"}},
		{value: "ñañaña", want: []string{"ñañ", "aña"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitCells(tt.value, 3)); diff != "" {
			t.Errorf("splitCells(%q) mismatch (-want +got):\n%s", tt.value, diff)
		}
	}
}

func TestFindRow(t *testing.T) {
	rows := [][]interface{}{
		{"key", "value"},
		{"rssFeeds", "[1]"},
		{},
		{"widgets"},
		{"chatbots", "[]"},
		{"conversations", "[{", "}]"},
	}

	tests := []struct {
		key     string
		wantRow int
		wantVal string
		wantOK  bool
	}{
		{key: "rssFeeds", wantRow: 2, wantVal: "[1]", wantOK: true},
		{key: "widgets", wantRow: 4, wantVal: "", wantOK: true},
		{key: "chatbots", wantRow: 5, wantVal: "[]", wantOK: true},
		{key: "conversations", wantRow: 6, wantVal: "[{}]", wantOK: true},
		{key: "key", wantOK: false},
		{key: "bundles", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			row, val, ok := findRow(rows, tt.key)
			if row != tt.wantRow || val != tt.wantVal || ok != tt.wantOK {
				t.Errorf("findRow(%q) = %d, %q, %v; want %d, %q, %v",
					tt.key, row, val, ok, tt.wantRow, tt.wantVal, tt.wantOK)
			}
		})
	}
}

func TestCredentialsJSON(t *testing.T) {
	if _, err := credentialsJSON(SheetsConfig{}); err == nil {
		t.Error("expected error without credentials")
	}
	data, err := credentialsJSON(SheetsConfig{ServiceAccountJSON: `{"type":"service_account"}`})
	if err != nil || string(data) != `{"type":"service_account"}` {
		t.Errorf("credentialsJSON = %q, %v", data, err)
	}
	if _, err := credentialsJSON(SheetsConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing credentials file")
	}
}
