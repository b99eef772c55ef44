package sheets

import (
	"context"
	"fmt"

	"drip_campaign_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// NewSink connects to the spreadsheet configured in cfg using service
// account credentials, inline JSON taking precedence over a file.
func NewSink(ctx context.Context, cfg *config.AppConfig, totalSteps int, logger *logrus.Entry) (*Sink, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if cfg.GoogleServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleServiceAccountJSON)))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleServiceAccountFile))
	}

	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSink(&googleValues{srv: srv}, cfg.GoogleSheetsID, cfg.GoogleSheetsWorksheet, totalSteps, logger), nil
}

type googleValues struct {
	srv *gsheets.Service
}

func (g *googleValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (g *googleValues) Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error {
	_, err := g.srv.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (g *googleValues) BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheets.ValueRange) error {
	req := &gsheets.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	if _, err := g.srv.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update: %w", err)
	}
	return nil
}
