package config

import (
	"encoding"
	"time"

	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/lib/arcache"
)

func DefaultClient() *Client {
	return &Client{
		API: API{
			URL:              build.DefaultGatewayURL,
			TrustedHosts:     append([]string(nil), build.DefaultTrustedHosts...),
			Timeout:          Duration(build.DefaultRequestTimeout),
			MaxContentLength: build.MaxContentLength,
		},
		Cache: Cache{
			Enabled:   true,
			Size:      arcache.DefaultSize,
			AnchorTTL: Duration(build.AnchorCacheTTL),
			PriceTTL:  Duration(build.PriceCacheTTL),
		},
		Upload: Upload{
			ErrorDelay: Duration(build.UploadErrorDelay),
			MaxErrors:  build.UploadMaxErrors,
		},
		Logging: Logging{
			SubsystemLevels: map[string]string{},
		},
	}
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration
// for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}

// Decode lets envconfig parse durations from the environment.
func (dur *Duration) Decode(value string) error {
	return dur.UnmarshalText([]byte(value))
}
