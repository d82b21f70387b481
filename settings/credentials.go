// Package settings stores stringlate's persistent state outside the
// application config: the user's credentials, and the per-project
// settings files kept in every project root.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/stringlate/auth.json  (default: ~/.local/share/stringlate/)
//
// The file is a JSON object keyed by provider ("github"). Each value is a
// union discriminated by "type":
//
//   - "oauth" holds a token obtained through the device flow
//   - "token" holds a personal access token entered by the user
//
// File permissions are 0600 (owner read/write only).
//
// Token lookup order:
//  1. --token flag (highest priority)
//  2. STRINGLATE_GITHUB_TOKEN environment variable
//  3. This credential store
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

const (
	dataDirName = "stringlate"
	fileName    = "auth.json"

	// GitHub is the provider id of GitHub credentials.
	GitHub = "github"

	// TokenEnv overrides the stored GitHub token.
	TokenEnv = "STRINGLATE_GITHUB_TOKEN"
)

// ---------------------------------------------------------------------------
// Auth entry types
// ---------------------------------------------------------------------------

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type discriminator: "oauth" or "token"
	Type string `json:"type"`

	// Access is the token itself, whichever way it was obtained.
	Access string `json:"access"`
	Scope  string `json:"scope,omitempty"`

	// Login is the account the token belongs to, when known.
	Login string `json:"login,omitempty"`
}

// IsOAuth returns true if the token came from the device flow.
func (i *Info) IsOAuth() bool { return i.Type == "oauth" }

// Store holds all credentials, keyed by provider id.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for stringlate.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the stringlate data directory.
// Default: ~/.local/share/stringlate (or $XDG_DATA_HOME/stringlate).
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// Set stores an entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes the credentials of a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// SetOAuth stores a device-flow token. The login of an existing entry is
// kept when none is given.
func SetOAuth(providerID, access, scope, login string) error {
	store := Load()
	info := &Info{Type: "oauth", Access: access, Scope: scope, Login: login}
	if existing := store[providerID]; existing != nil && login == "" {
		info.Login = existing.Login
	}
	store[providerID] = info
	return Save(store)
}

// SetToken stores a personal access token.
func SetToken(providerID, token, login string) error {
	return Set(providerID, &Info{Type: "token", Access: token, Login: login})
}

// ResolveToken returns the GitHub token to use, following the lookup order
// flag > environment > credential store. It returns "" when none is set.
func ResolveToken(flagToken string) string {
	if flagToken != "" {
		return flagToken
	}
	if env := os.Getenv(TokenEnv); env != "" {
		return env
	}
	if info := Get(GitHub); info != nil {
		return info.Access
	}
	return ""
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}
