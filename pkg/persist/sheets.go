package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig configures a SheetsSink.
type SheetsConfig struct {
	CredentialsFile string // Service-account JSON key
	SpreadsheetID   string
	Range           string // e.g. "Sheet1!A:L"
}

// SheetsSink appends one row per record to a Google spreadsheet. It is
// meant for low-volume reporting; every flush becomes a new row.
type SheetsSink struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	rng           string
}

// NewSheetsSink authenticates with a service account and prepares the
// Sheets client. Extra client options are appended after the credentials.
func NewSheetsSink(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("persist: spreadsheet id is required")
	}
	if cfg.Range == "" {
		cfg.Range = "Sheet1!A:L"
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse sheets credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(oauth2.ReuseTokenSource(nil, creds.TokenSource)))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsSink{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		rng:           cfg.Range,
	}, nil
}

// Name implements Sink.
func (s *SheetsSink) Name() string { return "sheets" }

// Save implements Sink.
func (s *SheetsSink) Save(ctx context.Context, rec Record) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{sheetRow(rec)}}
	_, err := s.values.Append(s.spreadsheetID, s.rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}

func sheetRow(rec Record) []interface{} {
	return []interface{}{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.SessionID,
		rec.SubjectID,
		rec.ContentID,
		rec.SubContentID,
		rec.FocusedSeconds,
		rec.UnfocusedSeconds,
		rec.TotalSeconds,
		rec.FocusPercentage,
		rec.FocusSessions,
		rec.UnfocusSessions,
		rec.SessionKind,
	}
}
