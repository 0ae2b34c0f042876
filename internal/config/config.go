// Package config loads and saves the passvault settings file.
package config

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/spf13/viper"
)

const (
	appName        = "passvault"
	configFileName = "passvault.yaml"
	dbFileName     = "accounts.db"
	envPrefix      = "PASSVAULT"
)

// ErrInvalidConfig is returned for settings that fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the content of the settings file.
type Config struct {
	DBPath     string        `mapstructure:"db_path"`
	MasterPass string        `mapstructure:"master_pass"`
	BlobFormat string        `mapstructure:"blob_format"`
	KDF        KDFConfig     `mapstructure:"kdf"`
	Storage    StorageConfig `mapstructure:"storage"`
	Log        LogConfig     `mapstructure:"log"`
}

// KDFConfig enables the Argon2id key path. Salt is hex encoded.
type KDFConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Salt    string `mapstructure:"salt"`
}

// StorageConfig selects the SQLite driver.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// LogConfig sets log level and the optional rotated log file.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// Settings is a loaded settings file.
type Settings struct {
	Config

	v    *viper.Viper
	path string
}

// DefaultPath returns the settings file location in the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaults(configPath string) map[string]any {
	return map[string]any{
		"db_path":         filepath.Join(filepath.Dir(configPath), dbFileName),
		"master_pass":     "",
		"blob_format":     "legacy",
		"kdf.enabled":     false,
		"kdf.salt":        "",
		"storage.driver":  "sqlite3",
		"log.level":       "info",
		"log.file":        "",
		"log.max_size_mb": 10,
		"log.max_files":   5,
	}
}

// Load reads the settings file at path, or at DefaultPath when path is
// empty. A missing file yields the defaults. Environment variables
// PASSVAULT_<KEY> override file values, e.g. PASSVAULT_LOG_LEVEL.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	for key, value := range defaults(path) {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s := &Settings{v: v, path: path}
	if err := v.Unmarshal(&s.Config); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file location.
func (s *Settings) Path() string {
	return s.path
}

// Exists reports whether the settings file is present on disk.
func (s *Settings) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Validate checks values that can not be fixed up silently.
func (s *Settings) Validate() error {
	switch s.Storage.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalidConfig, s.Storage.Driver)
	}
	if s.DBPath == "" {
		return fmt.Errorf("%w: db_path is empty", ErrInvalidConfig)
	}
	if s.MasterPass != "" {
		if _, err := hex.DecodeString(s.MasterPass); err != nil || len(s.MasterPass) != 2*sha512.Size {
			return fmt.Errorf("%w: master_pass is not a sha512 hex digest", ErrInvalidConfig)
		}
	}
	if s.KDF.Enabled {
		if _, err := s.KDFSalt(); err != nil {
			return err
		}
	}
	return nil
}

// KDFSalt decodes the configured salt.
func (s *Settings) KDFSalt() ([]byte, error) {
	salt, err := hex.DecodeString(s.KDF.Salt)
	if err != nil || len(salt) < crypto.SaltLen {
		return nil, fmt.Errorf("%w: kdf.salt must be hex of at least %d bytes", ErrInvalidConfig, crypto.SaltLen)
	}
	return salt, nil
}

// SetKDFSalt stores salt hex encoded.
func (s *Settings) SetKDFSalt(salt []byte) {
	s.KDF.Salt = hex.EncodeToString(salt)
}

// HasMasterPassphrase reports whether a master passphrase has been set.
func (s *Settings) HasMasterPassphrase() bool {
	return s.MasterPass != ""
}

// SetMasterPassphrase records the digest of passphrase. An empty passphrase
// clears it.
func (s *Settings) SetMasterPassphrase(passphrase []byte) {
	if len(passphrase) == 0 {
		s.MasterPass = ""
		return
	}
	s.MasterPass = digest(passphrase)
}

// VerifyMasterPassphrase compares passphrase against the stored digest.
// Without a stored digest only the empty passphrase matches.
func (s *Settings) VerifyMasterPassphrase(passphrase []byte) bool {
	if !s.HasMasterPassphrase() {
		return len(passphrase) == 0
	}
	return subtle.ConstantTimeCompare([]byte(digest(passphrase)), []byte(strings.ToLower(s.MasterPass))) == 1
}

// Save writes the settings file with owner-only permissions.
func (s *Settings) Save() error {
	if err := s.Validate(); err != nil {
		return err
	}

	s.v.Set("db_path", s.DBPath)
	s.v.Set("master_pass", s.MasterPass)
	s.v.Set("blob_format", s.BlobFormat)
	s.v.Set("kdf.enabled", s.KDF.Enabled)
	s.v.Set("kdf.salt", s.KDF.Salt)
	s.v.Set("storage.driver", s.Storage.Driver)
	s.v.Set("log.level", s.Log.Level)
	s.v.Set("log.file", s.Log.File)
	s.v.Set("log.max_size_mb", s.Log.MaxSizeMB)
	s.v.Set("log.max_files", s.Log.MaxFiles)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("set config permissions: %w", err)
	}
	return nil
}

// digest is the hex SHA-512 of the passphrase, the format used by settings
// files of earlier versions.
func digest(passphrase []byte) string {
	sum := sha512.Sum512(passphrase)
	return hex.EncodeToString(sum[:])
}
