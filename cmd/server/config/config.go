package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// BaseConfig is the root configuration the server binary loads through
// go-config. Sections map onto the interfaces the registry package consumes.
type BaseConfig struct {
	Server      Server      `json:"server" yaml:"server"`
	Auth        Auth        `json:"auth" yaml:"auth"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	Hooks       Hooks       `json:"hooks" yaml:"hooks"`
	Superuser   Superuser   `json:"superuser" yaml:"superuser"`
}

func (c BaseConfig) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Persistence.Validate()
}

func (c *BaseConfig) GetServer() *Server {
	return &c.Server
}

func (c *BaseConfig) GetAuth() *Auth {
	return &c.Auth
}

func (c *BaseConfig) GetPersistence() *Persistence {
	return &c.Persistence
}

func (c *BaseConfig) GetHooks() *Hooks {
	return &c.Hooks
}

func (c *BaseConfig) GetSuperuser() *Superuser {
	return &c.Superuser
}

type Server struct {
	Addr  string `json:"addr" yaml:"addr"`
	Debug bool   `json:"debug" yaml:"debug"`
}

func (s Server) GetAddr() string {
	if s.Addr == "" {
		return ":3000"
	}
	return s.Addr
}

func (s Server) GetDebug() bool {
	return s.Debug
}

// Auth implements registry.Config.
type Auth struct {
	SigningKey      string   `json:"signing_key" yaml:"signing_key"`
	TokenExpiration int      `json:"token_expiration" yaml:"token_expiration"`
	Issuer          string   `json:"issuer" yaml:"issuer"`
	Audience        []string `json:"audience" yaml:"audience"`
	ContextKey      string   `json:"context_key" yaml:"context_key"`
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&a.Issuer, validation.Required),
	)
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "jwt"
	}
	return a.ContextKey
}

type Persistence struct {
	Debug                 bool   `json:"debug" yaml:"debug"`
	DSN                   string `json:"dsn" yaml:"dsn"`
	PingTimeoutExpression string `json:"ping_timeout" yaml:"ping_timeout"`
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
	)
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDSN() string {
	return p.DSN
}

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}

	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

// Hooks implements registry.HookConfig. The create hook is optional; the
// reset hook must be set for the reset-token flow to succeed.
type Hooks struct {
	Create struct {
		URL  string         `json:"url" yaml:"url"`
		Data map[string]any `json:"data" yaml:"data"`
	} `json:"create" yaml:"create"`
	ResetPassword struct {
		URL string `json:"url" yaml:"url"`
	} `json:"reset_password" yaml:"reset_password"`
}

func (h Hooks) GetCreateHookURL() string {
	return h.Create.URL
}

func (h Hooks) GetCreateHookData() map[string]any {
	return h.Create.Data
}

func (h Hooks) GetResetHookURL() string {
	return h.ResetPassword.URL
}

// Superuser seeds an initial admin account when credentials are configured.
type Superuser struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

func (s Superuser) Enabled() bool {
	return s.Email != "" && s.Password != ""
}
