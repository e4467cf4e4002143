package device

import "time"

// Config holds settings shared by every device session.
type Config struct {
	// DefaultPort is used when a target omits the port. Defaults to 8728.
	DefaultPort int `yaml:"default_port"`

	// DialTimeout bounds TCP connection setup. Defaults to 5s.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// IOTimeout bounds a single API command round-trip. Defaults to 30s.
	IOTimeout time.Duration `yaml:"io_timeout"`

	// Username and Password are used when a probe request carries no
	// Authorization header.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPort: DefaultPort,
		DialTimeout: 5 * time.Second,
		IOTimeout:   30 * time.Second,
	}
}

// DefaultCredentials returns the configured fallback login, if any.
func (c Config) DefaultCredentials() (Credentials, bool) {
	if c.Username == "" {
		return Credentials{}, false
	}

	return Credentials{Username: c.Username, Password: c.Password}, true
}
