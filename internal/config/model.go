// internal/config/model.go
//
// Typed configuration model for the MaxLink dashboard.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `conf/global.yaml`                        – primary static file,
//   • `MAXLINK_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the secret resolver *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • Durations accept Go syntax ("250ms", "5s").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"time"

	"github.com/maxlink/dashboard/internal/widget"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`

	// AllowedOrigins lists extra origins allowed to open the live feed.
	AllowedOrigins []string `koanf:"allowed_origins" validate:"dive,url"`
}

//
// Dashboard section
//

// Dashboard configures the lifecycle manager.
type Dashboard struct {
	Title          string        `koanf:"title"`
	RootID         string        `koanf:"root_id"`
	ResizeDebounce time.Duration `koanf:"resize_debounce" validate:"gte=0"`

	// Widgets, when non-empty, replaces discovery entirely.
	Widgets []widget.Descriptor `koanf:"widgets" validate:"dive"`

	// Shared is merged under every widget's own config.
	Shared widget.Config `koanf:"shared"`
}

//
// Registry section
//

// Registry modes.
const (
	RegistryManifest = "manifest"
	RegistryStatic   = "static"
	RegistryTable    = "table"
)

// Registry selects how widgets are discovered when Dashboard.Widgets is
// empty.
type Registry struct {
	Mode     string   `koanf:"mode"     validate:"required,oneof=manifest static table"`
	Manifest string   `koanf:"manifest"`
	Static   []string `koanf:"static"`

	// Validate drops candidates whose markup or script is missing.
	Validate bool `koanf:"validate"`
}

//
// Assets section
//

// Assets says where widget files come from.  BaseURL, when set, fetches
// them over HTTP instead of from Dir.
type Assets struct {
	Dir       string        `koanf:"dir"        validate:"required"`
	BaseURL   string        `koanf:"base_url"   validate:"omitempty,url"`
	CacheSize int           `koanf:"cache_size" validate:"gte=0"`
	RetryMax  int           `koanf:"retry_max"  validate:"gte=0"`
	Timeout   time.Duration `koanf:"timeout"    validate:"gte=0"`
}

//
// Database section
//

// Database is only needed by the table registry.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* portion (`Password`) is
// usually a `vault:` reference and is substituted for the single %s verb.
type Database struct {
	DSN      string `koanf:"dsn"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

//
// Watch section
//

// Watch enables asset hot reload.
type Watch struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`
}

//
// State section
//

// State store kinds.
const (
	StateFile  = "file"
	StateTable = "table"
)

// State persists what widgets report through widget.Stater.  An empty
// Store disables persistence.
type State struct {
	Store string `koanf:"store" validate:"omitempty,oneof=file table"`
	File  string `koanf:"file"` // file store path, relative to the root
	Name  string `koanf:"name"` // table store row; defaults to the root id

	Restore    bool `koanf:"restore"`      // apply saved state after Init
	SaveOnExit bool `koanf:"save_on_exit"` // save state during shutdown
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or MAXLINK_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // MAXLINK_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Dashboard Dashboard `koanf:"dashboard"`
	Registry  Registry  `koanf:"registry"`
	Assets    Assets    `koanf:"assets"`
	Database  Database  `koanf:"database"`
	Watch     Watch     `koanf:"watch"`
	State     State     `koanf:"state"`
	Paths     Paths     `koanf:"-"` // not loaded from config files
}
