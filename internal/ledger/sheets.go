package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type SheetsConfig struct {
	SpreadsheetID       string
	Range               string
	ServiceAccountEmail string
	PrivateKey          []byte
	Timeout             time.Duration
}

// SheetsLedger appends rows through the Sheets v4 values API.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
	timeout       time.Duration
}

// NewSheetsService authenticates as a service account.
func NewSheetsService(ctx context.Context, cfg SheetsConfig) (*sheets.Service, error) {
	conf := &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: cfg.PrivateKey,
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

func NewSheetsLedger(svc *sheets.Service, cfg SheetsConfig) *SheetsLedger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rng := cfg.Range
	if rng == "" {
		rng = "Sheet1!A:L"
	}
	return &SheetsLedger{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		rng:           rng,
		timeout:       timeout,
	}
}

func (l *SheetsLedger) AppendRow(ctx context.Context, values []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	resp, err := l.svc.Spreadsheets.Values.
		Append(l.spreadsheetID, l.rng, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append ledger row: %w", err)
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return "", errors.New("append ledger row: response has no updated range")
	}

	return RowRef(resp.Updates.UpdatedRange), nil
}

// RowRef turns "Sheet1!A10:L10" into "A10".
func RowRef(updatedRange string) string {
	ref := updatedRange
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
