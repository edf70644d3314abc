package kv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/chatzia/internal/storage"
	"github.com/chatzia/pkg/logger"
	"github.com/chatzia/pkg/ratelimit"
)

// A Sheets cell holds at most 50,000 characters, so values are split across
// columns B to Z in chunks below that limit.
const (
	cellChars     = 45000
	maxValueCells = 25
)

// SheetsConfig holds configuration for the Sheets store
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	CredentialsFile    string
	RequestsPerMinute  int
}

// Sheets stores keys in a spreadsheet tab: column A holds the key and columns
// B onwards the value, split into cell-sized chunks. Row 1 is a header row.
type Sheets struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	limiter       *ratelimit.MultiLimiter
	log           *logger.Logger

	// serializes find-then-write so two Sets of a new key do not append twice
	mu sync.Mutex
}

// NewSheets creates a Sheets store authenticated with a service account
func NewSheets(ctx context.Context, cfg SheetsConfig, log *logger.Logger) (*Sheets, error) {
	data, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Google credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewSheetsWithService(srv, cfg, log), nil
}

// NewSheetsWithService creates a Sheets store on an existing service
func NewSheetsWithService(srv *sheets.Service, cfg SheetsConfig, log *logger.Logger) *Sheets {
	name := cfg.SheetName
	if name == "" {
		name = "Storage"
	}
	return &Sheets{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		limiter:       ratelimit.NewSheetsLimiter(cfg.RequestsPerMinute),
		log:           log.WithComponent("sheets-kv"),
	}
}

func credentialsJSON(cfg SheetsConfig) ([]byte, error) {
	switch {
	case cfg.ServiceAccountJSON != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("no Google credentials provided")
	}
}

// Migrate creates the tab and its header row if they don't exist
func (s *Sheets) Migrate(ctx context.Context) error {
	if err := s.limiter.Wait(ctx, ratelimit.LimiterSheetsRead); err != nil {
		return err
	}
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	exists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == s.sheetName {
			exists = true
			break
		}
	}

	if !exists {
		s.log.Info().Str("sheet", s.sheetName).Msg("Creating new sheet")
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{
					AddSheet: &sheets.AddSheetRequest{
						Properties: &sheets.SheetProperties{Title: s.sheetName},
					},
				},
			},
		}
		if err := s.limiter.Wait(ctx, ratelimit.LimiterSheetsWrite); err != nil {
			return err
		}
		if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
	}

	rows, err := s.readRows(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if err := s.writeRow(ctx, 1, []interface{}{"key", "value"}); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
		s.log.Info().Str("sheet", s.sheetName).Msg("Headers initialized")
	}
	return nil
}

func (s *Sheets) Get(ctx context.Context, key string) (string, bool, error) {
	rows, err := s.readRows(ctx)
	if err != nil {
		return "", false, err
	}
	_, value, ok := findRow(rows, key)
	return value, ok, nil
}

func (s *Sheets) Set(ctx context.Context, key, value string) error {
	cells := splitCells(value, cellChars)
	if len(cells) > maxValueCells {
		return fmt.Errorf("%w: value of %q is %d characters, over the %d a sheet row holds",
			storage.ErrValidation, key, len([]rune(value)), cellChars*maxValueCells)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx)
	if err != nil {
		return err
	}

	rowNum, _, ok := findRow(rows, key)
	if !ok {
		rowNum = len(rows) + 1
		if rowNum == 1 {
			rowNum = 2 // keep row 1 for headers
		}
	}

	row := make([]interface{}, 0, 1+len(cells))
	row = append(row, key)
	for _, c := range cells {
		row = append(row, c)
	}
	// blank the chunks a longer previous value left behind
	if ok {
		for len(row) < len(rows[rowNum-1]) {
			row = append(row, "")
		}
	}
	return s.writeRow(ctx, rowNum, row)
}

// Close is a no-op for Sheets
func (s *Sheets) Close() error {
	return nil
}

func (s *Sheets) readRows(ctx context.Context) ([][]interface{}, error) {
	if err := s.limiter.Wait(ctx, ratelimit.LimiterSheetsRead); err != nil {
		return nil, err
	}
	readRange := fmt.Sprintf("%s!A:%s", s.sheetName, column(1+maxValueCells))
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return resp.Values, nil
}

func (s *Sheets) writeRow(ctx context.Context, rowNum int, row []interface{}) error {
	if err := s.limiter.Wait(ctx, ratelimit.LimiterSheetsWrite); err != nil {
		return err
	}
	updateRange := fmt.Sprintf("%s!A%d:%s%d", s.sheetName, rowNum, column(len(row)), rowNum)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, updateRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}
	return nil
}

// findRow locates key in rows and returns its 1-indexed row number and the
// value joined from its chunks. Row 1 is the header and never matches.
func findRow(rows [][]interface{}, key string) (int, string, bool) {
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if fmt.Sprintf("%v", row[0]) != key {
			continue
		}
		var b strings.Builder
		for _, cell := range row[1:] {
			fmt.Fprintf(&b, "%v", cell)
		}
		return i + 1, b.String(), true
	}
	return 0, "", false
}

// splitCells cuts value into chunks of at most size characters
func splitCells(value string, size int) []string {
	runes := []rune(value)
	if len(runes) <= size {
		return []string{value}
	}
	var cells []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		cells = append(cells, string(runes[:n]))
		runes = runes[n:]
	}
	return cells
}

// column returns the letter of the 1-indexed column n (A to Z)
func column(n int) string {
	return string(rune('A' + n - 1))
}
