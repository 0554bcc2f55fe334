package liststore

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort matches the base URL written into a fresh .roster/config.yaml.
	DefaultPort = 8787
	// DefaultList is the list title served when none is given.
	DefaultList = "EmployeeDetails"
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the dev list server.
type Settings struct {
	Host      string
	Port      int
	List      string
	SitePath  string
	SeedPath  string
	JWTSecret string
	// Rate is requests per second across all callers; zero disables throttling.
	Rate         float64
	Burst        int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultSettings returns settings with every field at its default and
// LISTSTORE_* environment overrides applied.
func DefaultSettings() Settings {
	settings := Settings{
		Host:         DefaultHost,
		Port:         DefaultPort,
		List:         DefaultList,
		SitePath:     DefaultSitePath,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	settings.applyEnvOverrides()
	settings.Normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(os.Getenv("LISTSTORE_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("LISTSTORE_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if list := strings.TrimSpace(os.Getenv("LISTSTORE_LIST")); list != "" {
		s.List = list
	}
	if secret := strings.TrimSpace(os.Getenv("LISTSTORE_JWT_SECRET")); secret != "" {
		s.JWTSecret = secret
	}
	if value := strings.TrimSpace(os.Getenv("LISTSTORE_RATE")); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			s.Rate = parsed
		}
	}
}

// Normalize fills zero values with defaults. Port zero is kept so tests can
// bind an ephemeral port.
func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = DefaultPort
	}
	s.List = strings.TrimSpace(s.List)
	if s.List == "" {
		s.List = DefaultList
	}
	if s.Burst <= 0 {
		s.Burst = max(1, int(s.Rate))
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SiteURL is the base URL a roster client should be configured with.
func (s Settings) SiteURL(addr string) string {
	if addr == "" {
		addr = s.Address()
	}
	base := "http://" + addr
	if site := strings.Trim(s.SitePath, "/"); site != "" {
		base += "/" + site
	}
	return base
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
