// Package syncq persists player writes that could not reach the API so they can be
// replayed later under their original idempotency keys.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"

	"starpets/internal/cli"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
}

func queuePath() (string, error) {
	dir, err := cli.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Replay sends every queued command through send and keeps the ones that failed
// for a reason other than a server rejection. It returns how many were delivered.
func Replay(commands []Command, send func(Command) error) (delivered int, remaining []Command, rejected []error) {
	remaining = make([]Command, 0, len(commands))
	for _, c := range commands {
		err := send(c)
		switch {
		case err == nil:
			delivered++
		case cli.IsAPIError(err):
			rejected = append(rejected, err)
		default:
			remaining = append(remaining, c)
		}
	}
	return delivered, remaining, rejected
}
