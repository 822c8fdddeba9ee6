package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/util"
)

const PasswordEnv = "NOTEDAV_PASSWORD"

var (
	configFilePath = filepath.Join(util.ConfigDir, "config.toml")
	defaultVault   = filepath.Join(util.HomeDir(), "notedav-vault")

	defaultRequestTimeout = 60 * time.Second
)

// DefaultSyncInterval applies when no positive interval is configured.
const DefaultSyncInterval = 60 * time.Second

// Config is read once per invocation and handed to the engine by value.
type Config struct {
	WebDavURL       string        `toml:"webdav_url"`
	Username        string        `toml:"username"`
	Password        string        `toml:"password"`
	RemoteRoot      string        `toml:"remote_root"`
	LocalDir        string        `toml:"local_dir"`
	SyncInterval    time.Duration `toml:"sync_interval"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	TransferWorkers int           `toml:"transfer_workers"`
	LogFile         string        `toml:"log_file"`
}

// IsConfigured reports whether enough is known to talk to the server.
func (c Config) IsConfigured() bool {
	return c.WebDavURL != "" && c.Username != "" && c.Password != ""
}

func Path() string {
	return configFilePath
}

func Get() (Config, error) {
	return get(false)
}

func GetInteractive() (Config, error) {
	return get(true)
}

func get(interactive bool) (Config, error) {
	c := Config{}
	f, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return initConfig(interactive)
	case err != nil:
		return c, fmt.Errorf("could not open config file for reading '%s': %s", configFilePath, err)
	}
	defer f.Close()

	_, err = toml.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("could not decode config file '%s': %s", configFilePath, err)
	}
	c.applyDefaults()
	c.applyEnv()
	return c, nil
}

func initConfig(interactive bool) (Config, error) {
	c := initialConfig()
	if interactive {
		err := guidedInitialization(&c)
		if err != nil {
			return c, fmt.Errorf("could not initialize config interactively: %w", err)
		}
		c.applyDefaults()
	}
	if err := c.persist(); err != nil {
		return c, err
	}
	c.applyEnv()
	return c, nil
}

// Reconfigure runs the guided initialization on top of the stored values
// and persists the result.
func Reconfigure(c Config) (Config, error) {
	if err := guidedInitialization(&c); err != nil {
		return c, fmt.Errorf("could not reconfigure interactively: %w", err)
	}
	c.applyDefaults()
	return c, c.persist()
}

func (c *Config) persist() error {
	f, err := util.OpenWithParents(configFilePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("could not open config file for writing '%s': %w", configFilePath, err)
	}
	defer f.Close()

	logging.Debugf("Persisting config file to '%s'", configFilePath)
	err = toml.NewEncoder(f).Encode(c)
	if err != nil {
		return fmt.Errorf("could not persist config to file '%s': %w", configFilePath, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.LocalDir == "" {
		c.LocalDir = defaultVault
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.TransferWorkers < 1 {
		c.TransferWorkers = 1
	}
}

func (c *Config) applyEnv() {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		c.Password = pw
	}
}

func initialConfig() Config {
	c := Config{}
	c.applyDefaults()
	return c
}
