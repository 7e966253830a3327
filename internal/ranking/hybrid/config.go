package hybrid

import "time"

// Config holds the façade switches.
type Config struct {
	UseCloud        bool `json:"useCloud"`
	FallbackToLocal bool `json:"fallbackToLocal"`
	AutoSync        bool `json:"autoSync"`
	// SyncInterval is in minutes.
	SyncInterval int `json:"syncInterval"`
}

// DefaultConfig returns cloud first with local fallback and no auto sync.
func DefaultConfig() Config {
	return Config{
		UseCloud:        true,
		FallbackToLocal: true,
		AutoSync:        false,
		SyncInterval:    5,
	}
}

// ConfigUpdate changes the fields that are set and leaves the rest.
type ConfigUpdate struct {
	UseCloud        *bool `json:"useCloud,omitempty"`
	FallbackToLocal *bool `json:"fallbackToLocal,omitempty"`
	AutoSync        *bool `json:"autoSync,omitempty"`
	SyncInterval    *int  `json:"syncInterval,omitempty"`
}

// Apply returns c with u merged in. Non-positive intervals are ignored.
func (c Config) Apply(u ConfigUpdate) Config {
	if u.UseCloud != nil {
		c.UseCloud = *u.UseCloud
	}
	if u.FallbackToLocal != nil {
		c.FallbackToLocal = *u.FallbackToLocal
	}
	if u.AutoSync != nil {
		c.AutoSync = *u.AutoSync
	}
	if u.SyncInterval != nil && *u.SyncInterval > 0 {
		c.SyncInterval = *u.SyncInterval
	}
	return c
}

func (c Config) interval() time.Duration {
	return time.Duration(c.SyncInterval) * time.Minute
}
