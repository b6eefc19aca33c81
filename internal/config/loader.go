// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `MAXLINK_`, where `__` maps to “.”
     (e.g., `MAXLINK_HTTP__LISTEN_ADDR → http.listen_addr`).

Every string value of the form `vault:<path>#<key>` is then swapped for
the secret it names.  After that the tree is unmarshalled into
strongly-typed structs, defaulted, validated, enriched with the runtime
root path, and cached in an `atomic.Pointer` for lock-free reads.
`Reload()` simply loads again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay, secret lookups.
  • ERROR spans: YAML parse, env overlay, secret, unmarshal, validation.
  • INFO  span:  final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed (bootstrap console).

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "MAXLINK_"

// VaultPrefix marks values resolved through a SecretResolver.
const VaultPrefix = "vault:"

// secretTTL is how long resolved secrets stay cached in the client.
const secretTTL = 10 * time.Minute

// SecretResolver looks up one key of a KV secret.  *vault.Client
// satisfies it.
type SecretResolver interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

var (
	current  atomic.Pointer[Config]
	resolver atomic.Pointer[SecretResolver]
)

// SetSecretResolver installs the resolver used by Load and Reload.
func SetSecretResolver(r SecretResolver) {
	if r == nil {
		resolver.Store(nil)
		return
	}
	resolver.Store(&r)
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves MAXLINK_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.
func Load() (*Config, error) {
	var r SecretResolver
	if p := resolver.Load(); p != nil {
		r = *p
	}
	return LoadFrom(context.Background(), rootDir(), r)
}

// LoadFrom is Load with an explicit root and resolver.  A nil resolver
// makes any `vault:` value an error.
func LoadFrom(ctx context.Context, root string, secrets SecretResolver) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: MAXLINK_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret lookup failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"registry", cfg.Registry.Mode,
		"assets", cfg.Assets.Dir,
		"watch", cfg.Watch.Enabled,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets replaces every "vault:<path>#<key>" string in k.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretResolver) error {
	for key, val := range k.All() {
		s, ok := val.(string)
		if !ok || !strings.HasPrefix(s, VaultPrefix) {
			continue
		}
		ref := strings.TrimPrefix(s, VaultPrefix)
		path, field, ok := strings.Cut(ref, "#")
		if !ok || path == "" || field == "" {
			return fmt.Errorf("%s: malformed secret reference %q", key, s)
		}
		if secrets == nil {
			return fmt.Errorf("%s: secret reference but no vault configured", key)
		}
		plain, err := secrets.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, plain); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		zap.S().Debugw("config secret resolved", "key", key, "path", path)
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Dashboard.Title == "" {
		c.Dashboard.Title = "MaxLink"
	}
	if c.Dashboard.RootID == "" {
		c.Dashboard.RootID = "dashboard"
	}
	if c.Dashboard.ResizeDebounce == 0 {
		c.Dashboard.ResizeDebounce = 250 * time.Millisecond
	}
	if c.Registry.Mode == "" {
		c.Registry.Mode = RegistryManifest
	}
	if c.Assets.Dir == "" {
		c.Assets.Dir = "web"
	}
	if !filepath.IsAbs(c.Assets.Dir) {
		c.Assets.Dir = filepath.Join(c.Paths.Root, c.Assets.Dir)
	}
	if c.Assets.CacheSize == 0 {
		c.Assets.CacheSize = 128
	}
	if c.Database.MaxOpen == 0 {
		c.Database.MaxOpen = 5
	}
	if c.Database.MaxIdle == 0 {
		c.Database.MaxIdle = 2
	}
	if c.State.File == "" {
		c.State.File = filepath.Join("data", "state.json")
	}
	if !filepath.IsAbs(c.State.File) {
		c.State.File = filepath.Join(c.Paths.Root, c.State.File)
	}
	if c.State.Name == "" {
		c.State.Name = c.Dashboard.RootID
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Root() string  { return rootDir() }
func Reload() error { _, err := Load(); return err }

// FullDSN returns the database DSN with the password substituted for its %s
// verb, if it has one.
func (d Database) FullDSN() string {
	if strings.Contains(d.DSN, "%s") {
		return fmt.Sprintf(d.DSN, d.Password)
	}
	return d.DSN
}
