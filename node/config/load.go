package config

import (
	"bytes"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

// EnvPrefix prefixes environment overrides, e.g. ARPI_API_URL or
// ARPI_UPLOAD_MAXERRORS.
const EnvPrefix = "ARPI"

// FromFile loads config from a specified file overriding defaults specified in
// the def parameter. If file does not exist or is empty defaults are assumed.
// Environment overrides are applied last.
func FromFile(path string, def *Client) (*Client, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, xerrors.Errorf("expanding config path: %w", err)
	}

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return applyEnv(def)
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, def)
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *Client) (*Client, error) {
	cfg := *def
	cfg.API.TrustedHosts = slices.Clone(def.API.TrustedHosts)
	cfg.Logging.SubsystemLevels = maps.Clone(def.Logging.SubsystemLevels)
	if _, err := toml.NewDecoder(reader).Decode(&cfg); err != nil {
		return nil, xerrors.Errorf("decoding config: %w", err)
	}

	return applyEnv(&cfg)
}

func applyEnv(cfg *Client) (*Client, error) {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, xerrors.Errorf("processing env config: %w", err)
	}
	return cfg, nil
}

// ConfigComment renders cfg as TOML with every line commented out, the way a
// fresh config file is written.
func ConfigComment(cfg *Client) ([]byte, error) {
	buf := new(bytes.Buffer)
	_, _ = buf.WriteString("# Default config:\n")
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding config: %w", err)
	}
	b := buf.Bytes()
	b = bytes.ReplaceAll(b, []byte("\n"), []byte("\n#"))
	b = bytes.ReplaceAll(b, []byte("#["), []byte("["))
	return b, nil
}
