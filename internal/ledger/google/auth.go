package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Credentials selects the auth mechanism for the Sheets API. A service
// account (inline JSON or file) is preferred; an OAuth client plus a stored
// token (produced by cmd/oauth-init) is the fallback for personal
// spreadsheets.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string
}

func (c Credentials) clientOptions(ctx context.Context) ([]goption.ClientOption, error) {
	switch {
	case c.ServiceAccountJSON != "":
		return []goption.ClientOption{goption.WithCredentialsJSON([]byte(c.ServiceAccountJSON))}, nil
	case c.ServiceAccountFile != "":
		b, err := os.ReadFile(c.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return []goption.ClientOption{goption.WithCredentialsJSON(b)}, nil
	case c.OAuthClientFile != "" && c.OAuthTokenFile != "":
		ts, err := c.tokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	default:
		return nil, errors.New("missing sheets credentials (set a service account or an OAuth client and token file)")
	}
}

func (c Credentials) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(c.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	tb, err := os.ReadFile(c.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tb, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}
