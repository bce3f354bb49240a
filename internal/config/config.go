package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/wso2/open-auth-bouncer/internal/constants"
)

// Authorization mode for authenticated callers
type AuthorizationMode string

const (
	AllowAllMode AuthorizationMode = "allow_all"
	DomainMode   AuthorizationMode = "domain"
)

// Session store backend
type StoreKind string

const (
	MemoryStore StoreKind = "memory"
	RedisStore  StoreKind = "redis"
)

type ProviderConfig struct {
	Name         string   `yaml:"name"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	ServerURL    string   `yaml:"server_url"`    // OAuth server, hosts /oauth/authorize, /oauth/token and /logout
	APIURL       string   `yaml:"api_url"`       // API host queried for the caller's identity
	IdentityPath string   `yaml:"identity_path"` // Path on APIURL returning {email, name, id}
	Scopes       []string `yaml:"scopes,omitempty"`
	RedirectURL  string   `yaml:"redirect_url"`
}

type AuthorizationConfig struct {
	Mode          AuthorizationMode `yaml:"mode"`
	AllowedDomain string            `yaml:"allowed_domain"`
	GroupName     string            `yaml:"group_name"`
	FallbackURL   string            `yaml:"fallback_url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SessionConfig struct {
	Store      StoreKind   `yaml:"store"`
	CookieName string      `yaml:"cookie_name"`
	Secret     string      `yaml:"secret"`
	Secure     bool        `yaml:"secure"`
	TTLSeconds int         `yaml:"ttl_seconds"`
	Redis      RedisConfig `yaml:"redis"`
}

type LandingConfig struct {
	Login  string `yaml:"login"`
	Logout string `yaml:"logout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// UpstreamCommand describes an application launched behind the bouncer
type UpstreamCommand struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	WorkDir string   `yaml:"work_dir"`
	Env     []string `yaml:"env,omitempty"`
}

type Config struct {
	ListenPort         int                 `yaml:"listen_port"`
	UpstreamURL        string              `yaml:"upstream_url"`
	TimeoutSeconds     int                 `yaml:"timeout_seconds"`
	IgnoredRoutes      []string            `yaml:"ignored_routes"`
	SessionSyncNonce   string              `yaml:"session_sync_nonce"`
	ForwardAccessToken bool                `yaml:"forward_access_token"`
	Provider           ProviderConfig      `yaml:"provider"`
	Authorization      AuthorizationConfig `yaml:"authorization"`
	Session            SessionConfig       `yaml:"session"`
	Landing            LandingConfig       `yaml:"landing"`
	Metrics            MetricsConfig       `yaml:"metrics"`
	UpstreamCommand    UpstreamCommand     `yaml:"upstream_command"`
}

// Validate checks that the config is complete enough to serve traffic
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream_url is required")
	}
	if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" {
		return fmt.Errorf("provider.client_id and provider.client_secret are required")
	}
	if c.Provider.ServerURL == "" {
		return fmt.Errorf("provider.server_url is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}

	switch c.Session.Store {
	case MemoryStore:
	case RedisStore:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required when session.store is redis")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}

	switch c.Authorization.Mode {
	case AllowAllMode:
	case DomainMode:
		if c.Authorization.AllowedDomain == "" {
			return fmt.Errorf("authorization.allowed_domain is required in domain mode")
		}
	default:
		return fmt.Errorf("unknown authorization.mode %q", c.Authorization.Mode)
	}

	if c.UpstreamCommand.Enabled && c.UpstreamCommand.Command == "" {
		return fmt.Errorf("upstream_command.command is required when upstream_command is enabled")
	}

	for _, route := range c.IgnoredRoutes {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("ignored route %q must start with /", route)
		}
	}

	return nil
}

// LogoutURL returns the page users land on after logging out. Empty means
// /logout on the bouncer's own host.
func (c *Config) LogoutURL() string {
	return c.Landing.Logout
}

// SessionTTL returns how long a session record lives in the store
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

// GetIgnoredRoutes returns ignored routes plus paths the bouncer itself must never gate
func (c *Config) GetIgnoredRoutes() []string {
	routes := append([]string{}, c.IgnoredRoutes...)
	if c.Metrics.Enabled {
		routes = append(routes, c.Metrics.Path)
	}
	return routes
}

func (c *Config) setDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = constants.DefaultTimeoutSeconds
	}
	if c.ListenPort == 0 {
		c.ListenPort = constants.DefaultListenPort
	}
	if c.Provider.Name == "" {
		c.Provider.Name = constants.DefaultProvider
	}
	if c.Provider.IdentityPath == "" {
		c.Provider.IdentityPath = "/account"
	}
	if c.Provider.APIURL == "" {
		c.Provider.APIURL = c.Provider.ServerURL
	}
	if c.Authorization.Mode == "" {
		c.Authorization.Mode = AllowAllMode
	}
	if c.Authorization.GroupName == "" {
		c.Authorization.GroupName = c.Authorization.AllowedDomain
	}
	if c.Session.Store == "" {
		c.Session.Store = MemoryStore
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = constants.DefaultSessionCookie
	}
	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = constants.DefaultSessionTTLHours * 3600
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = constants.DefaultRedisPrefix
	}
	if c.Landing.Login == "" {
		c.Landing.Login = constants.DefaultLoginLanding
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = constants.DefaultMetricsPath
	}
}

// LoadConfig reads a YAML config file into Config struct.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	// Secrets may come from the environment instead of the file
	if secret := os.Getenv("BOUNCER_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if secret := os.Getenv("BOUNCER_CLIENT_SECRET"); secret != "" {
		cfg.Provider.ClientSecret = secret
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
