package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version     int             `toml:"version"`
	InstallID   string          `toml:"install_id"`
	Credentials credsSchema     `toml:"credentials"`
	Identity    *identitySchema `toml:"identity,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported session schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type credsSchema struct {
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	ExpiresAt    string `toml:"expires_at,omitempty"`
	LastActiveAt string `toml:"last_active_at,omitempty"`
}

type identitySchema struct {
	ID        string   `toml:"id"`
	Username  string   `toml:"username"`
	Email     string   `toml:"email"`
	FirstName string   `toml:"first_name,omitempty"`
	LastName  string   `toml:"last_name,omitempty"`
	Flags     []string `toml:"flags,omitempty"`
}
