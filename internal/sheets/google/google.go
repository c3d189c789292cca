// Package google reads period tabs from a Google Sheets spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	ports "budget/internal/sheets"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client is a read-only raw period source backed by the Sheets API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	layout        core.Layout
	now           func() time.Time
	logger        *applog.Logger
}

// Ensure interface conformance
var _ ports.Source = (*Client)(nil)

// Credentials selects how the client authenticates. Service account
// credentials take precedence over an OAuth client and token pair.
type Credentials struct {
	ServiceAccountJSON []byte
	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
}

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	Layout        core.Layout
	Credentials   Credentials
}

// New creates a Sheets client from explicit options.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts.Credentials)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newWithService(svc, opts.SpreadsheetID, opts.Layout), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID string, layout core.Layout) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		layout:        layout,
		now:           time.Now,
		logger:        applog.ForComponent(applog.ComponentSheets),
	}
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID (or SPREADSHEET_ID)
// Auth, first match wins: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// GOOGLE_APPLICATION_CREDENTIALS, then GOOGLE_OAUTH_CLIENT_JSON/FILE together
// with GOOGLE_OAUTH_TOKEN_JSON/FILE.
func NewFromEnv(ctx context.Context, layout core.Layout) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		spreadsheetID = strings.TrimSpace(os.Getenv("SPREADSHEET_ID"))
	}
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, Options{SpreadsheetID: spreadsheetID, Layout: layout, Credentials: creds})
}

func credentialsFromEnv() (Credentials, error) {
	var creds Credentials
	var err error

	creds.ServiceAccountJSON, err = readInlineOrFile(
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	if err != nil {
		return creds, fmt.Errorf("read service account: %w", err)
	}
	if len(creds.ServiceAccountJSON) > 0 {
		return creds, nil
	}

	creds.OAuthClientJSON, err = readInlineOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return creds, fmt.Errorf("read oauth client: %w", err)
	}
	creds.OAuthTokenJSON, err = readInlineOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return creds, fmt.Errorf("read oauth token: %w", err)
	}
	return creds, nil
}

// readInlineOrFile returns the value of inlineVar, or the content of the file
// named by the first set fileVars.
func readInlineOrFile(inlineVar string, fileVars ...string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(inlineVar)); v != "" {
		return []byte(v), nil
	}
	for _, name := range fileVars {
		path := strings.TrimSpace(os.Getenv(name))
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return b, nil
	}
	return nil, nil
}

// newSheetsService initializes a read-only Sheets service.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	logger := applog.ForComponent(applog.ComponentSheets)

	if len(creds.ServiceAccountJSON) > 0 {
		logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(creds.ServiceAccountJSON))
		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(creds.ServiceAccountJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	if len(creds.OAuthClientJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_JSON/FILE)")
	}
	if len(creds.OAuthTokenJSON) == 0 {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := oauthgoogle.ConfigFromJSON(creds.OAuthClientJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(creds.OAuthTokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The token source refreshes through the pooled client.
	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := cfg.Client(oauthCtx, &tok)

	logger.InfoContext(ctx, "Creating Google Sheets service with OAuth token",
		"has_refresh_token", tok.RefreshToken != "")
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		// The assembler fans out up to a handful of concurrent fetches.
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
