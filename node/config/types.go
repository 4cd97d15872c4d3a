package config

// // NOTE: ONLY PUT STRUCT DEFINITIONS IN THIS FILE

// Client is the configuration of an SDK client and the arpi CLI.
type Client struct {
	API     API
	Cache   Cache
	Upload  Upload
	Logging Logging
}

// API contains configs for the gateway client
type API struct {
	// URL of the gateway requests start from.
	URL string
	// TrustedHosts are tried in order when URL fails. Failover is disabled
	// when URL points at localhost.
	TrustedHosts []string
	Timeout      Duration
	// MaxContentLength caps response bodies, in bytes.
	MaxContentLength int64
	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	// LogRequests logs every request and response.
	LogRequests bool
}

// Cache controls the in-memory cache of anchors, prices and wallet lookups.
type Cache struct {
	Enabled   bool
	Size      int
	AnchorTTL Duration
	PriceTTL  Duration
}

// Upload tunes chunk upload retries.
type Upload struct {
	// ErrorDelay is the base wait after a failed request.
	ErrorDelay Duration
	// MaxErrors is the error streak after which an upload is abandoned.
	MaxErrors int
}

// Logging is the logging system config
type Logging struct {
	// SubsystemLevels specify per-subsystem log levels
	SubsystemLevels map[string]string
}
