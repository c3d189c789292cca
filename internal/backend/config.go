package backend

import (
	"fmt"
	"os"
	"strings"

	"budget/internal/config"
	gsheet "budget/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	serviceAccountFile := appConfig.GoogleServiceAccountFile
	if serviceAccountFile == "" {
		serviceAccountFile = appConfig.GoogleApplicationCredentials
	}

	dataDir := appConfig.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	return Config{
		Type: backendType,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: serviceAccountFile,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,

		DataDirectory: dataDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SheetsBackend:
		if strings.TrimSpace(c.GoogleSpreadsheetID) == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.hasServiceAccount() {
			return nil
		}
		if c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			return fmt.Errorf("either a service account or OAuth client credentials are required for sheets backend")
		}
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			return fmt.Errorf("OAuth token is required for sheets backend")
		}

	case MemoryBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for memory backend")
		}
	}

	return nil
}

func (c Config) hasServiceAccount() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

// Credentials resolves inline values and files into Sheets credentials.
// Inline JSON wins over a file. A service account wins over OAuth.
func (c Config) Credentials() (gsheet.Credentials, error) {
	var creds gsheet.Credentials
	var err error

	creds.ServiceAccountJSON, err = inlineOrFile(c.GoogleServiceAccountJSON, c.GoogleServiceAccountFile)
	if err != nil {
		return creds, fmt.Errorf("read service account: %w", err)
	}
	if len(creds.ServiceAccountJSON) > 0 {
		return creds, nil
	}

	creds.OAuthClientJSON, err = inlineOrFile(c.GoogleOAuthClientJSON, c.GoogleOAuthClientFile)
	if err != nil {
		return creds, fmt.Errorf("read oauth client: %w", err)
	}
	creds.OAuthTokenJSON, err = inlineOrFile(c.GoogleOAuthTokenJSON, c.GoogleOAuthTokenFile)
	if err != nil {
		return creds, fmt.Errorf("read oauth token: %w", err)
	}
	return creds, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return []byte(v), nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend types as strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	result := make([]string, len(types))
	for i, t := range types {
		result[i] = t.String()
	}
	return result
}
