package sigmacli

import (
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/drand/kyber"

	"github.com/drand/sigma/crypto"
	"github.com/drand/sigma/internal/fs"
	"github.com/drand/sigma/internal/store"
	"github.com/drand/sigma/nizk"
)

// ConfigFileName is the config looked up in the base folder when --config is
// not given.
const ConfigFileName = "sigma.toml"

// Config is the session configuration of the command line tools. Flags
// override the values read from the TOML file.
type Config struct {
	Group    string
	Hash     string
	Context  string `toml:",omitempty"` // hex
	Attempts int
}

// DefaultConfig proves in the default group, with the default hash and no
// context.
func DefaultConfig() *Config {
	return &Config{
		Group:    crypto.DefaultGroupID,
		Hash:     crypto.DefaultHash.String(),
		Attempts: nizk.DefaultAttempts,
	}
}

// LoadConfig reads the TOML file at path over the default config.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := crypto.GetGroupByNameWithDefault(c.Group); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := crypto.GetHashByNameWithDefault(c.Hash); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := hex.DecodeString(c.Context); err != nil {
		result = multierror.Append(result, fmt.Errorf("context is not hexadecimal: %w", err))
	}
	if c.Attempts < 1 {
		result = multierror.Append(result, fmt.Errorf("attempts must be positive, got %d", c.Attempts))
	}
	return result.ErrorOrNil()
}

// Suite resolves the group and the hash of a valid config. An empty name
// stands for the default.
func (c *Config) Suite() (kyber.Group, crypto.HashFunction, error) {
	g, err := crypto.GetGroupByNameWithDefault(c.Group)
	if err != nil {
		return nil, 0, err
	}
	h, err := crypto.GetHashByNameWithDefault(c.Hash)
	if err != nil {
		return nil, 0, err
	}
	return g, h, nil
}

// ContextBytes decodes the context of a valid config.
func (c *Config) ContextBytes() []byte {
	ctx, _ := hex.DecodeString(c.Context)
	return ctx
}

// contextToConfig loads the config file, applies the flags and validates the
// result.
func contextToConfig(c *cli.Context) (*Config, error) {
	conf := DefaultConfig()
	path := c.String(configFlag.Name)
	if path == "" {
		candidate := folderPath(c, ConfigFileName)
		if ok, err := fs.Exists(candidate); err != nil {
			return nil, err
		} else if ok {
			path = candidate
		}
	}
	if path != "" {
		var err error
		if conf, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(groupFlag.Name) {
		conf.Group = c.String(groupFlag.Name)
	}
	if c.IsSet(hashFlag.Name) {
		conf.Hash = c.String(hashFlag.Name)
	}
	if c.IsSet(contextFlag.Name) {
		conf.Context = hex.EncodeToString([]byte(c.String(contextFlag.Name)))
	}
	if c.IsSet(attemptsFlag.Name) {
		conf.Attempts = c.Int(attemptsFlag.Name)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func fileStore(c *cli.Context) store.Store {
	return store.NewFileStore(c.String(folderFlag.Name), contextLogger(c))
}
