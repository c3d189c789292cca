package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budget/internal/config"
	"budget/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:                  "sheets",
		GoogleSpreadsheetID:          "sheet-123",
		GoogleApplicationCredentials: "/tmp/sa.json",
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != SheetsBackend {
		t.Fatalf("type = %s, want sheets", got.Type)
	}
	if got.GoogleServiceAccountFile != "/tmp/sa.json" {
		t.Fatalf("service account file = %q, want fallback to GOOGLE_APPLICATION_CREDENTIALS", got.GoogleServiceAccountFile)
	}
	if got.DataDirectory != "data" {
		t.Fatalf("data directory = %q, want default", got.DataDirectory)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory ok", Config{Type: MemoryBackend, DataDirectory: "data"}, ""},
		{"memory without dir", Config{Type: MemoryBackend}, "data directory"},
		{"sheets service account", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleServiceAccountJSON: "{}"}, ""},
		{"sheets oauth", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleOAuthClientJSON: "{}", GoogleOAuthTokenFile: "t.json"}, ""},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID"},
		{"sheets without client", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, "OAuth client"},
		{"sheets without token", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleOAuthClientFile: "c.json"}, "OAuth token"},
		{"unknown", Config{Type: "mysql"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialsPrecedence(t *testing.T) {
	dir := t.TempDir()
	saPath := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(saPath, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := Config{GoogleServiceAccountFile: saPath, GoogleOAuthClientJSON: "{}"}.Credentials()
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if string(creds.ServiceAccountJSON) != `{"type":"service_account"}` {
		t.Fatalf("service account = %q", creds.ServiceAccountJSON)
	}
	if creds.OAuthClientJSON != nil {
		t.Fatalf("oauth client should not be read when a service account is set")
	}

	creds, err = Config{GoogleOAuthClientJSON: " {\"installed\":{}} ", GoogleOAuthTokenJSON: "{}"}.Credentials()
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if string(creds.OAuthClientJSON) != `{"installed":{}}` || string(creds.OAuthTokenJSON) != "{}" {
		t.Fatalf("unexpected oauth credentials: %q %q", creds.OAuthClientJSON, creds.OAuthTokenJSON)
	}

	if _, err := (Config{GoogleServiceAccountFile: filepath.Join(dir, "missing.json")}).Credentials(); err == nil {
		t.Fatalf("expected error for missing service account file")
	}
}

func TestCreateMemorySource(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"label":"Jan2021","expenses":[{"label":"rent","value":"800"}],"residents":["a","b"]}]`
	if err := os.WriteFile(filepath.Join(dir, "periods.json"), []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory().CreateSource(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir}, core.DefaultLayout())
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if res.Type != MemoryBackend {
		t.Fatalf("type = %s", res.Type)
	}
	tabs, err := res.Source.ListTabs(context.Background())
	if err != nil {
		t.Fatalf("ListTabs: %v", err)
	}
	if len(tabs) != 1 || tabs[0].Title != "Jan2021" {
		t.Fatalf("tabs = %+v", tabs)
	}
}

func TestCreateSourceRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory().CreateSource(context.Background(), Config{Type: SheetsBackend}, core.DefaultLayout())
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "sheets" || got[1] != "memory" {
		t.Fatalf("got %v", got)
	}
}
