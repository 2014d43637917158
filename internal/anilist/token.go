package anilist

import (
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Token is the persisted AniList session.
type Token struct {
	AccessToken string `json:"access_token"`
	UserID      int    `json:"user_id"`
}

// LoadToken reads the token file. A missing file yields an empty token, not
// an error; the client then degrades to unauthenticated no-ops.
func LoadToken(path string) Token {
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}
	}
	return t
}

// Save atomically replaces the token file. Callers must only save tokens
// already validated through Viewer.
func (t Token) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}
	return renameio.WriteFile(path, data, 0600)
}

// Valid reports whether the token carries an access token at all.
func (t Token) Valid() bool {
	return t.AccessToken != ""
}
