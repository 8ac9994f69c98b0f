package goGate

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/credentials"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/go-playground/validator/v10"
)

// Config defines a public type used by goGate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session  SessionConfig  `koanf:"session"`
	Password PasswordConfig `koanf:"password"`
	Policy   PolicyConfig   `koanf:"policy"`
	Login    LoginConfig    `koanf:"login"`
	Cookie   CookieConfig   `koanf:"cookie"`
	Security SecurityConfig `koanf:"security"`
	Audit    AuditConfig    `koanf:"audit"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Log      LogConfig      `koanf:"log"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the Redis key namespace.
type SessionConfig struct {
	RedisPrefix       string `koanf:"redis_prefix" validate:"required"`
	SlidingExpiration bool   `koanf:"sliding_expiration"`
	// InactivityTimeout applies to anonymous sessions and to identities
	// established without remember-me.
	InactivityTimeout  time.Duration `koanf:"inactivity_timeout" validate:"gt=0"`
	RememberMeDuration time.Duration `koanf:"remember_me_duration" validate:"gt=0"`
	// AbsoluteSessionLifetime caps an authenticated session from the moment
	// it was established. Zero disables the cap.
	AbsoluteSessionLifetime time.Duration `koanf:"absolute_lifetime" validate:"gte=0"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goGate APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Argon2         password.Argon2Params `koanf:"argon2"`
	UpgradeOnLogin bool                  `koanf:"upgrade_on_login"`
}

/*
====================================
POLICY CONFIG
====================================
*/

const (
	// PolicyBackendTable selects the bitmask role table.
	PolicyBackendTable = "table"
	// PolicyBackendCasbin selects the Casbin RBAC enforcer.
	PolicyBackendCasbin = "casbin"
)

// PolicyConfig selects the authorization backend and carries its rules.
type PolicyConfig struct {
	Backend string           `koanf:"backend" validate:"oneof=table casbin"`
	MaxBits int              `koanf:"max_bits" validate:"oneof=64 128"`
	Rules   permission.Rules `koanf:"rules"`
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig names the login routes and form fields.
type LoginConfig struct {
	Path           string `koanf:"path" validate:"required,startswith=/"`
	LogoutPath     string `koanf:"logout_path" validate:"required,startswith=/"`
	DefaultLanding string `koanf:"default_landing" validate:"required,startswith=/"`

	IdentityField   string `koanf:"identity_field" validate:"required"`
	SecretField     string `koanf:"secret_field" validate:"required"`
	TokenField      string `koanf:"token_field" validate:"required"`
	RememberMeField string `koanf:"remember_me_field" validate:"required"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the session cookie. HashKey and BlockKey are hex
// encoded; an empty HashKey makes the server generate an ephemeral key.
type CookieConfig struct {
	Name     string `koanf:"name" validate:"required"`
	Path     string `koanf:"path" validate:"required,startswith=/"`
	Domain   string `koanf:"domain"`
	Secure   bool   `koanf:"secure"`
	SameSite string `koanf:"same_site" validate:"oneof=lax strict none"`
	HashKey  string `koanf:"hash_key" validate:"omitempty,hexadecimal"`
	BlockKey string `koanf:"block_key" validate:"omitempty,hexadecimal"`
}

// SameSiteMode maps SameSite onto net/http.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch c.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goGate APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	// RequireActive rejects records whose active flag is false. The
	// rejection is reported to the caller as invalid credentials.
	RequireActive         bool          `koanf:"require_active"`
	EnableIPThrottle      bool          `koanf:"enable_ip_throttle"`
	MaxLoginAttempts      int           `koanf:"max_login_attempts" validate:"gt=0"`
	LoginCooldownDuration time.Duration `koanf:"login_cooldown" validate:"gt=0"`
	// LoginRequestsPerMinute bounds POSTs to the login route per client IP
	// at the HTTP layer. Zero disables it.
	LoginRequestsPerMinute int `koanf:"login_requests_per_minute" validate:"gte=0"`
}

// AuditConfig defines a public type used by goGate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig defines a public type used by goGate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"latency_histograms"`
}

/*
====================================
BACKENDS
====================================
*/

// DatabaseConfig locates the PostgreSQL credential store.
type DatabaseConfig struct {
	Name            string                      `koanf:"name"`
	Host            string                      `koanf:"host"`
	Port            int                         `koanf:"port" validate:"gte=0,lte=65535"`
	User            string                      `koanf:"user"`
	Password        string                      `koanf:"password"`
	SSLMode         string                      `koanf:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConnections  int                         `koanf:"max_connections" validate:"gte=0"`
	ConnMaxLifetime time.Duration               `koanf:"conn_max_lifetime" validate:"gte=0"`
	Migrate         bool                        `koanf:"migrate"`
	Credentials     credentials.PostgresOptions `koanf:"credentials"`
}

// DSN assembles a pgx connection URL. It returns "" when no database name
// is configured.
func (d DatabaseConfig) DSN() string {
	if d.Name == "" {
		return ""
	}
	host := d.Host
	if host == "" {
		host = "localhost"
	}
	if d.Port > 0 {
		host += ":" + strconv.Itoa(d.Port)
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + d.Name}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

// RedisConfig locates the session backend. Embedded starts an in-process
// miniredis instead of dialing Addr.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Embedded bool   `koanf:"embedded"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:        "gg",
			SlidingExpiration:  true,
			InactivityTimeout:  1440 * time.Second,
			RememberMeDuration: 604800 * time.Second,
		},
		Password: PasswordConfig{
			Argon2:         password.DefaultArgon2Params(),
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			Backend: PolicyBackendTable,
			MaxBits: 64,
			Rules:   permission.DefaultRules(),
		},
		Login: LoginConfig{
			Path:            "/login",
			LogoutPath:      "/logout",
			DefaultLanding:  "/",
			IdentityField:   "email",
			SecretField:     "password",
			TokenField:      "csrf_token",
			RememberMeField: "remember_me",
		},
		Cookie: CookieConfig{
			Name:     "gogate_session",
			Path:     "/",
			Secure:   true,
			SameSite: "lax",
		},
		Security: SecurityConfig{
			RequireActive:          false,
			EnableIPThrottle:       false,
			MaxLoginAttempts:       5,
			LoginCooldownDuration:  15 * time.Minute,
			LoginRequestsPerMinute: 30,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  10,
			ConnMaxLifetime: 30 * time.Minute,
			Credentials:     credentials.DefaultPostgresOptions(),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Policy.Rules = cloneRules(cfg.Policy.Rules)
	return out
}

func cloneRules(r permission.Rules) permission.Rules {
	out := r
	out.Public = cloneStrings(r.Public)
	out.Authenticated = cloneStrings(r.Authenticated)
	if r.Roles != nil {
		out.Roles = make([]permission.RoleRule, len(r.Roles))
		for i, rr := range r.Roles {
			out.Roles[i] = permission.RoleRule{
				Name:      rr.Name,
				Inherits:  cloneStrings(rr.Inherits),
				Resources: cloneStrings(rr.Resources),
			}
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules that struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Session.RememberMeDuration < c.Session.InactivityTimeout {
		return errors.New("Session RememberMeDuration must be >= InactivityTimeout")
	}
	if c.Session.AbsoluteSessionLifetime > 0 && c.Session.AbsoluteSessionLifetime < c.Session.InactivityTimeout {
		return errors.New("Session AbsoluteSessionLifetime must be >= InactivityTimeout when set")
	}

	if c.Policy.Rules.LoginPath != c.Login.Path {
		return errors.New("Policy LoginPath must match Login Path")
	}
	if err := c.Policy.Rules.Validate(); err != nil {
		return err
	}

	fields := map[string]struct{}{}
	for _, f := range []string{c.Login.IdentityField, c.Login.SecretField, c.Login.TokenField, c.Login.RememberMeField} {
		if _, dup := fields[f]; dup {
			return fmt.Errorf("Login form field %q used twice", f)
		}
		fields[f] = struct{}{}
	}
	if c.Login.Path == c.Login.LogoutPath {
		return errors.New("Login Path and LogoutPath must differ")
	}

	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=none requires Secure")
	}
	for _, k := range []struct{ name, val string }{{"HashKey", c.Cookie.HashKey}, {"BlockKey", c.Cookie.BlockKey}} {
		if k.val == "" {
			continue
		}
		switch len(k.val) {
		case 32, 48, 64, 128:
		default:
			return fmt.Errorf("Cookie %s must decode to 16, 24, 32 or 64 bytes", k.name)
		}
	}
	if c.Cookie.BlockKey != "" && len(c.Cookie.BlockKey) == 128 {
		return errors.New("Cookie BlockKey must be an AES key of 16, 24 or 32 bytes")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Redis.Addr == "" && !c.Redis.Embedded {
		return errors.New("Redis Addr is required unless Embedded is set")
	}
	if strings.TrimSpace(c.Database.Name) != "" && c.Database.Host == "" {
		return errors.New("Database Host is required when Name is set")
	}

	return nil
}
