package sheets

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const sheetsAPIBase = "https://sheets.googleapis.com/v4/spreadsheets"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetIDFromURL extracts the document id from a full sheet URL. A
// bare id passes through unchanged.
func SpreadsheetIDFromURL(sheetURL string) (string, error) {
	if m := spreadsheetIDPattern.FindStringSubmatch(sheetURL); m != nil {
		return m[1], nil
	}
	if sheetURL != "" && !regexp.MustCompile(`[/:]`).MatchString(sheetURL) {
		return sheetURL, nil
	}
	return "", fmt.Errorf("cannot extract spreadsheet id from %q", sheetURL)
}

// Client is a thin wrapper over the Sheets v4 values API for one document.
type Client struct {
	rest          *resty.Client
	tokens        *tokenSource
	spreadsheetID string
	logger        *zap.Logger
}

// ClientConfig holds construction parameters for the sheets client.
type ClientConfig struct {
	SpreadsheetURL  string
	CredentialsFile string
	Logger          *zap.Logger
}

// NewClient builds the client and its token source; no network I/O happens
// until the first call.
func NewClient(cfg *ClientConfig) (*Client, error) {
	id, err := SpreadsheetIDFromURL(cfg.SpreadsheetURL)
	if err != nil {
		return nil, err
	}

	tokens, err := newTokenSource(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	return &Client{
		rest:          resty.New().SetBaseURL(sheetsAPIBase + "/" + id).SetTimeout(15 * time.Second),
		tokens:        tokens,
		spreadsheetID: id,
		logger:        cfg.Logger,
	}, nil
}

// Values reads a whole worksheet; rows come back as strings.
func (c *Client) Values(ctx context.Context, worksheet string) ([][]string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var out struct {
		Values [][]any `json:"values"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/values/" + url.PathEscape(worksheet))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", worksheet, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("read %q: status %d: %s", worksheet, resp.StatusCode(), resp.String())
	}

	rows := make([][]string, len(out.Values))
	for i, row := range out.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows, nil
}

// Overwrite replaces a worksheet's contents: clear, then one RAW update
// starting at A1.
func (c *Client) Overwrite(ctx context.Context, worksheet string, values [][]any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	escaped := url.PathEscape(worksheet)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/values/" + escaped + ":clear")
	if err != nil {
		return fmt.Errorf("clear %q: %w", worksheet, err)
	}
	if resp.IsError() {
		return fmt.Errorf("clear %q: status %d: %s", worksheet, resp.StatusCode(), resp.String())
	}

	resp, err = c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(map[string]any{"values": values}).
		Put("/values/" + escaped)
	if err != nil {
		return fmt.Errorf("update %q: %w", worksheet, err)
	}
	if resp.IsError() {
		return fmt.Errorf("update %q: status %d: %s", worksheet, resp.StatusCode(), resp.String())
	}

	c.logger.Debug("worksheet-overwritten",
		zap.String("worksheet", worksheet),
		zap.Int("rows", len(values)))
	return nil
}

// AddWorksheet creates an empty worksheet tab. Already-exists errors
// surface unchanged; the bootstrap path tolerates them.
func (c *Client) AddWorksheet(ctx context.Context, title string) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body := map[string]any{
		"requests": []any{
			map[string]any{
				"addSheet": map[string]any{
					"properties": map[string]any{"title": title},
				},
			},
		},
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		Post(":batchUpdate")
	if err != nil {
		return fmt.Errorf("add worksheet %q: %w", title, err)
	}
	if resp.IsError() {
		return fmt.Errorf("add worksheet %q: status %d: %s", title, resp.StatusCode(), resp.String())
	}
	return nil
}
