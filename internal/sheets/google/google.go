package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fluxo/internal/config"
	"fluxo/internal/core"

	ports "fluxo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// NewClient creates a Sheets client from the loaded configuration.
// Credentials come from GoogleCredentialsJSON (inline) or
// GoogleCredentialsFile (path to a service account key).
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing Google spreadsheet ID")
	}

	sheetName := cfg.GoogleSheetName
	if sheetName == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*gsheet.Service, error) {
	credentialsJSON := strings.TrimSpace(cfg.GoogleCredentialsJSON)
	credentialsFile := strings.TrimSpace(cfg.GoogleCredentialsFile)

	var raw []byte
	var err error

	switch {
	case credentialsJSON != "":
		raw = []byte(credentialsJSON)
	case credentialsFile != "":
		raw, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return service, nil
}

// Append writes one ledger entry as a row:
// due date, counterparty, service, kind, amount, status, paid date.
func (c *Client) Append(ctx context.Context, o core.Obligation, e core.LedgerEntry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	amount := float64(e.Amount.Cents) / 100.0
	paidDate := ""
	if !e.PaidDate.IsZero() {
		paidDate = e.PaidDate.String()
	}

	vr := &gsheet.ValueRange{Values: [][]any{{
		e.DueDate.String(),
		o.Counterparty,
		o.ServiceLabel,
		string(o.Kind),
		amount,
		string(e.Status),
		paidDate,
	}}}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
