package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/vfs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Data    DataConfig        `yaml:"data"`
	Auth    AuthConfig        `yaml:"auth"`
	Desktop DesktopConfig     `yaml:"desktop"`
	Apps    []registry.App    `yaml:"apps"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Desktop.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Apps))
	for i := range c.Apps {
		app := &c.Apps[i]
		if err := validation.ValidateStruct(app,
			validation.Field(&app.ID, validation.Required),
			validation.Field(&app.Title, validation.Required),
			validation.Field(&app.URL, validation.Required),
		); err != nil {
			return fmt.Errorf("apps[%d]: %w", i, err)
		}
		if _, dup := seen[app.ID]; dup {
			return fmt.Errorf("apps[%d]: duplicate id %q", i, app.ID)
		}
		seen[app.ID] = struct{}{}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DataConfig locates everything the desktop keeps on disk. Relative SQLite,
// Downloads and Inbox paths are resolved against Dir.
type DataConfig struct {
	Dir        string `yaml:"dir"`
	SQLite     string `yaml:"sqlite"`
	Downloads  string `yaml:"downloads"`
	Inbox      string `yaml:"inbox"`
	Iterations int    `yaml:"iterations"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.SQLite, validation.Required),
		validation.Field(&c.Iterations, validation.Min(0)),
	)
}

// Path resolves p against Dir. An empty p stays empty.
func (c *DataConfig) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DesktopConfig holds the initial desktop geometry and timings.
type DesktopConfig struct {
	Width         int            `yaml:"width"`
	Height        int            `yaml:"height"`
	IconCells     IconCellConfig `yaml:"icon_cells"`
	FrameRate     int            `yaml:"frame_rate"`
	IconsThrottle time.Duration  `yaml:"icons_throttle"`
	Autosave      time.Duration  `yaml:"autosave"`
	TwitchParent  string         `yaml:"twitch_parent"`
	Terminal      TerminalConfig `yaml:"terminal"`
}

// Validate validates the desktop configuration.
func (c *DesktopConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(1)),
		validation.Field(&c.Height, validation.Required, validation.Min(1)),
		validation.Field(&c.FrameRate, validation.Min(0), validation.Max(240)),
		validation.Field(&c.IconsThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.Autosave, validation.Min(time.Duration(0))),
		validation.Field(&c.IconCells),
	)
}

// IconCellConfig sizes the desktop icon grid. Zero values keep the defaults.
type IconCellConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Padding int `yaml:"padding"`
}

// Validate validates the icon grid configuration.
func (c IconCellConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Width, validation.Min(0)),
		validation.Field(&c.Height, validation.Min(0)),
		validation.Field(&c.Padding, validation.Min(0)),
	)
}

// TerminalConfig describes the terminal window. Command, when set, is
// started when the first terminal window opens and stopped when it closes.
type TerminalConfig struct {
	URL     string   `yaml:"url"`
	Command []string `yaml:"command"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Data: DataConfig{
			Dir:        "./data",
			SQLite:     "hedgey.db",
			Downloads:  "downloads",
			Inbox:      "inbox",
			Iterations: vfs.DefaultIterations,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Desktop: DesktopConfig{
			Width:         1280,
			Height:        800,
			FrameRate:     60,
			IconsThrottle: 100 * time.Millisecond,
			Autosave:      time.Second,
			Terminal: TerminalConfig{
				URL: "terminal.html",
			},
		},
		Apps: []registry.App{
			{ID: "about", Title: "About HedgeyOS", URL: "about.html"},
		},
	}
}
