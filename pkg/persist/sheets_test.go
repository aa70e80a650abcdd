package persist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestSheetsSinkAppendsRow(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotRows  [][]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		var body struct {
			Values [][]any `json:"values"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotRows = body.Values

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId": "sheet-123", "updates": {"updatedRows": 1}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sink, err := NewSheetsSink(ctx, SheetsConfig{SpreadsheetID: "sheet-123"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	rec := Record{
		SessionID:       "s1",
		SubjectID:       "u1",
		ContentID:       "m1",
		FocusedSeconds:  22,
		TotalSeconds:    30,
		FocusPercentage: 73.3,
		SessionKind:     DefaultSessionKind,
		Timestamp:       time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC),
	}
	require.NoError(t, sink.Save(ctx, rec))

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-123/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	require.Len(t, gotRows, 1)
	require.Len(t, gotRows[0], 12)
	assert.Equal(t, "2024-01-01T00:00:30Z", gotRows[0][0])
	assert.Equal(t, "u1", gotRows[0][2])
	assert.Equal(t, 73.3, gotRows[0][8])
	assert.Equal(t, DefaultSessionKind, gotRows[0][11])
}

func TestSheetsSinkRequiresSpreadsheet(t *testing.T) {
	_, err := NewSheetsSink(context.Background(), SheetsConfig{})
	assert.Error(t, err)
}
