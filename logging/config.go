package logging

import "time"

// Config selects the sinks a Router feeds and how it treats its queue.
// EnabledSinks names are "console", "json" and "memory".
type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// Fields are stamped onto every routed event unless the event already
	// carries the key.
	Fields map[string]any
	JSON   JSONConfig
	// DropWarnInterval rate-limits the fallback warning printed when a full
	// queue drops events.
	DropWarnInterval time.Duration
}

// JSONConfig configures the newline-delimited match event file.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		Fields:           map[string]any{"service": "puppet-arena"},
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
