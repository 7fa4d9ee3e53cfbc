package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Profile is the player identity spctl sends as X-User-ID.
type Profile struct {
	UserID string `json:"user_id"`
	APIURL string `json:"api_url,omitempty"`
}

// Dir is where spctl keeps its profile and offline queue. STARPETS_HOME overrides it.
func Dir() (string, error) {
	dir := strings.TrimSpace(os.Getenv("STARPETS_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".spctl")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func profilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

func SaveProfile(p Profile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func LoadProfile() (Profile, error) {
	path, err := profilePath()
	if err != nil {
		return Profile{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(p.UserID) == "" {
		return Profile{}, fmt.Errorf("no user id in profile")
	}
	return p, nil
}

func ClearProfile() error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
