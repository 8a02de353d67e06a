package models

import "time"

// Config represents the client configuration
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Refresh RefreshConfig
	Stream  StreamConfig
}

// APIConfig holds settings for the banking API transport
type APIConfig struct {
	BaseURL               string
	RequestTimeout        time.Duration
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
}

// StorageConfig holds settings for the durable client-state store
type StorageConfig struct {
	Path        string
	PingTimeout time.Duration
}

// RefreshConfig holds account-refresh scheduling settings
type RefreshConfig struct {
	PollingInterval time.Duration
}

// StreamConfig holds settings for the optional account-event stream
type StreamConfig struct {
	Enabled bool
	Path    string
}
