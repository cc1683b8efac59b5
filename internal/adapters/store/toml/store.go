package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
	"github.com/halcyonapp/halcyon-session-cli/internal/ports"
)

const (
	configName        = "config"
	configType        = "toml"
	sessionPathKey    = "session.path"
	sessionFileMode   = 0o600
	sessionDirMode    = 0o700
	sessionConfigDir  = ".halcyon"
	sessionConfigFile = "session.toml"
	tempFilePattern   = ".session-*.toml.tmp"
)

// Store persists the credential record in a single TOML file. Writes go
// through a temp file and rename so an interrupted write can never leave a
// record with a mismatched token pair on disk.
type Store struct {
	sessionPath string
	logger      zerolog.Logger
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(cfg *viper.Viper, logger zerolog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, sessionConfigDir, sessionConfigFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, sessionConfigDir))
	cfg.SetDefault(sessionPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	sessionPath := cfg.GetString(sessionPathKey)
	if sessionPath == "" {
		return nil, errors.New("session path is empty")
	}
	sessionPath, err = normalizeSessionPath(sessionPath)
	if err != nil {
		return nil, err
	}

	return &Store{sessionPath: sessionPath, logger: logger, mu: lockForPath(sessionPath)}, nil
}

// Read returns the stored credential record, or (nil, nil) when no usable
// record exists. A corrupt or partially written file is erased and reported
// as absent, forcing a re-login rather than a crash.
func (s *Store) Read(ctx context.Context) (*domain.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.sessionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read session file: %w", domain.ErrStorageError, err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		s.discardCorrupt(err)
		return nil, nil
	}
	if err := file.validateVersion(); err != nil {
		s.discardCorrupt(err)
		return nil, nil
	}
	file.applyDefaults()

	if file.Credentials.AccessToken == "" && file.Credentials.RefreshToken == "" {
		return nil, nil
	}

	record := fromSchema(file)
	return &record, nil
}

func (s *Store) Write(ctx context.Context, record domain.CredentialRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeSchema(toSchema(record)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageError, err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete session file: %w", domain.ErrStorageError, err)
	}

	return nil
}

func (s *Store) discardCorrupt(cause error) {
	s.logger.Warn().Err(cause).Str("path", s.sessionPath).
		Msg("discarding unreadable session record")

	if err := os.Remove(s.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error().Err(err).Str("path", s.sessionPath).
			Msg("remove unreadable session record")
	}
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.sessionPath), sessionDirMode); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.sessionPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}

	if err := tempFile.Chmod(sessionFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}

	if err := os.Rename(tempName, s.sessionPath); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(s.sessionPath, sessionFileMode); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}

	return nil
}

func normalizeSessionPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve session path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(record domain.CredentialRecord) fileSchema {
	file := fileSchema{
		InstallID: record.InstallID,
		Credentials: credsSchema{
			AccessToken:  record.Session.AccessToken,
			RefreshToken: record.Session.RefreshToken,
			ExpiresAt:    formatTime(record.Session.ExpiresAt),
			LastActiveAt: formatTime(record.Session.LastActiveAt),
		},
	}

	if record.Identity != nil {
		file.Identity = &identitySchema{
			ID:        record.Identity.ID,
			Username:  record.Identity.Username,
			Email:     record.Identity.Email,
			FirstName: record.Identity.FirstName,
			LastName:  record.Identity.LastName,
			Flags:     record.Identity.Flags,
		}
	}

	return file
}

func fromSchema(file fileSchema) domain.CredentialRecord {
	record := domain.CredentialRecord{
		InstallID: file.InstallID,
		Session: domain.Session{
			AccessToken:  file.Credentials.AccessToken,
			RefreshToken: file.Credentials.RefreshToken,
			ExpiresAt:    parseTime(file.Credentials.ExpiresAt),
			LastActiveAt: parseTime(file.Credentials.LastActiveAt),
		},
	}

	if file.Identity != nil {
		record.Identity = &domain.UserIdentity{
			ID:        file.Identity.ID,
			Username:  file.Identity.Username,
			Email:     file.Identity.Email,
			FirstName: file.Identity.FirstName,
			LastName:  file.Identity.LastName,
			Flags:     file.Identity.Flags,
		}
	}

	return record
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
