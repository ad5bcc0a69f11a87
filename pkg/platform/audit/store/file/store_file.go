// Package file writes audit events as JSON lines. Every event goes to
// app.log; security events are also written to security.log.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
)

const (
	AppLogName      = "app.log"
	SecurityLogName = "security.log"
)

type Store struct {
	mu       sync.Mutex
	app      *os.File
	security *os.File
}

// Open creates dir if needed and opens both logs for appending.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	app, err := openAppend(filepath.Join(dir, AppLogName))
	if err != nil {
		return nil, err
	}
	sec, err := openAppend(filepath.Join(dir, SecurityLogName))
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return &Store{app: app, security: sec}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.app.Write(line); err != nil {
		return fmt.Errorf("write app log: %w", err)
	}
	if event.IsSecurity() {
		if _, err := s.security.Write(line); err != nil {
			return fmt.Errorf("write security log: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errApp := s.app.Close()
	errSec := s.security.Close()
	if errApp != nil {
		return errApp
	}
	return errSec
}
