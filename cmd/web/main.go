// cmd/web/main.go
//
// MaxLink dashboard – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load conf/.env and start the daily rotating logger (tees to console
//     when running in a TTY).
//
//  2. Attach Vault as the config secret resolver when VAULT_ADDR is set,
//     then load conf/global.yaml.
//
//  3. Build the asset source (local directory or remote origin), the
//     widget lister (manifest, static list, or database table), and the
//     optional widget state store (file or database table).
//
//  4. Create the page document, the widget manager, and the live feed hub.
//     The hub observes manager events and mirrors document changes.
//
//  5. Run Init in the background so the page is served immediately; the
//     feed fills containers in as widgets load.
//
//  6. Watch widgets/ for edits and hot-reload the affected widget.
//
//  7. Serve until SIGINT or SIGTERM, then save widget state, destroy
//     widgets, and close feeds.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/api"
	"github.com/maxlink/dashboard/internal/asset"
	"github.com/maxlink/dashboard/internal/config"
	"github.com/maxlink/dashboard/internal/dashboard"
	"github.com/maxlink/dashboard/internal/database"
	"github.com/maxlink/dashboard/internal/discovery"
	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/feed"
	"github.com/maxlink/dashboard/internal/logger"
	"github.com/maxlink/dashboard/internal/middleware"
	"github.com/maxlink/dashboard/internal/server"
	"github.com/maxlink/dashboard/internal/vault"
	"github.com/maxlink/dashboard/internal/view"
	"github.com/maxlink/dashboard/internal/watch"
	"github.com/maxlink/dashboard/internal/widget"

	_ "github.com/maxlink/dashboard/widgets/clock"
	_ "github.com/maxlink/dashboard/widgets/logo"
	_ "github.com/maxlink/dashboard/widgets/servermonitoring"
	_ "github.com/maxlink/dashboard/widgets/uptime"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.Root()
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	logOut, err := logger.New(logger.Options{
		Root:  root,
		Tee:   runningInTTY(),
		Level: os.Getenv("MAXLINK_LOG_LEVEL"),
	})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	if err := run(ctx, logOut); err != nil {
		logOut.Errorw("dashboard stopped", "err", err)
		logOut.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.SugaredLogger) error {
	//
	// ── 1.  Secrets and configuration ───────────────────────────────────
	//
	if vault.Available() {
		cli, err := vault.New(ctx, vault.Options{Logger: log})
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}
		config.SetSecretResolver(cli)
		log.Infow("vault secret resolver attached")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	//
	// ── 2.  Assets and discovery ────────────────────────────────────────
	//
	raw, err := assetSource(cfg, log)
	if err != nil {
		return err
	}
	src := asset.Cached(raw, cfg.Assets.CacheSize)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	lister := widgetLister(cfg, src, db, log)
	store := stateStore(cfg, db)

	//
	// ── 3.  Document, manager, and feed ─────────────────────────────────
	//
	doc := dom.New(cfg.Dashboard.RootID)
	doc.Head().SetTitle(cfg.Dashboard.Title)
	doc.Head().Meta(`<meta name="color-scheme" content="dark light">`)

	mgr, err := dashboard.New(dashboard.Options{
		Document:       doc,
		Lister:         lister,
		Source:         src,
		RootID:         cfg.Dashboard.RootID,
		ResizeDebounce: cfg.Dashboard.ResizeDebounce,
		SharedConfig:   cfg.Dashboard.Shared,
		StateStore:     store,
		RestoreOnInit:  cfg.State.Restore,
		Logger:         log.Named("dashboard"),
	})
	if err != nil {
		return err
	}
	defer mgr.Close()
	if store != nil && cfg.State.SaveOnExit {
		defer func() {
			// ctx is already cancelled by the time this runs.
			if err := mgr.SaveState(context.Background()); err != nil {
				log.Warnw("dashboard state not saved", "err", err)
			}
		}()
	}

	hub := feed.NewHub(doc, mgr, log.Named("feed"), feed.Options{
		CheckOrigin: originChecker(cfg.HTTP.AllowedOrigins),
	})
	defer hub.Close()
	mgr.RegisterObserver(hub)

	log.Infow("widget bindings registered", "widgets", widget.IDs())

	go func() {
		descs, err := mgr.Init(ctx, cfg.Dashboard.Widgets)
		if err != nil {
			log.Errorw("dashboard init failed", "err", err)
			return
		}
		log.Infow("dashboard initialized", "widgets", len(descs))
	}()

	//
	// ── 4.  Hot reload ──────────────────────────────────────────────────
	//
	if cfg.Watch.Enabled && cfg.Assets.BaseURL == "" {
		w, err := watch.New(filepath.Join(cfg.Assets.Dir, "widgets"), mgr, log.Named("watch"), cfg.Watch.Debounce)
		if err != nil {
			log.Warnw("widget watcher unavailable", "err", err)
		} else if err := w.Start(ctx); err != nil {
			log.Warnw("widget watcher failed to start", "err", err)
		} else {
			defer w.Stop()
		}
	}

	//
	// ── 5.  HTTP ────────────────────────────────────────────────────────
	//
	renderer := view.New(os.DirFS(cfg.Assets.Dir), view.Options{Logger: log.Named("view")})

	r := chi.NewRouter()
	r.Use(middleware.AccessLog(log.Named("http")))
	r.Use(middleware.Security)

	r.Get("/", renderer.Handler(doc).ServeHTTP)
	r.Handle("/static/*", http.FileServer(http.Dir(cfg.Assets.Dir)))
	r.Handle("/widgets/*", asset.Handler(raw, log.Named("asset")))
	r.Mount("/api", api.Routes(mgr, log.Named("api")))
	r.Handle("/ws", hub)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := server.New(cfg.HTTP.ListenAddr, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, r))
	return server.Run(ctx, srv, log.Named("http"))
}

// assetSource picks the remote origin when assets.base_url is set, and the
// local asset directory otherwise.
func assetSource(cfg *config.Config, log *zap.SugaredLogger) (asset.Source, error) {
	if cfg.Assets.BaseURL == "" {
		log.Infow("assets from disk", "dir", cfg.Assets.Dir)
		return asset.NewFS(os.DirFS(cfg.Assets.Dir)), nil
	}
	src, err := asset.NewHTTP(cfg.Assets.BaseURL, asset.HTTPOptions{
		RetryMax: cfg.Assets.RetryMax,
		Timeout:  cfg.Assets.Timeout,
		Logger:   log.Named("asset"),
	})
	if err != nil {
		return nil, err
	}
	log.Infow("assets from remote origin", "base_url", cfg.Assets.BaseURL)
	return src, nil
}

// openDatabase connects when the widget registry or the state store lives
// in the database, and returns nil otherwise.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Registry.Mode != config.RegistryTable && cfg.State.Store != config.StateTable {
		return nil, nil
	}
	db, err := database.Open(ctx, cfg.Database.FullDSN(), cfg.Database.MaxOpen, cfg.Database.MaxIdle)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// widgetLister builds the configured registry.  db is only read in table
// mode.
func widgetLister(cfg *config.Config, src asset.Source, db *sqlx.DB, log *zap.SugaredLogger) discovery.Lister {
	var lister discovery.Lister
	switch cfg.Registry.Mode {
	case config.RegistryStatic:
		lister = discovery.StaticIDs(cfg.Registry.Static...)
	case config.RegistryTable:
		lister = discovery.NewTable(db, log.Named("discovery"))
	default:
		lister = discovery.NewManifest(src, cfg.Registry.Manifest, log.Named("discovery"))
	}

	if cfg.Registry.Validate {
		lister = discovery.Validate(lister, src, asset.Paths{}, log.Named("discovery"))
	}
	log.Infow("widget registry ready", "mode", cfg.Registry.Mode, "validate", cfg.Registry.Validate)
	return lister
}

// stateStore returns the configured widget state store, or nil when
// persistence is off.
func stateStore(cfg *config.Config, db *sqlx.DB) dashboard.StateStore {
	switch cfg.State.Store {
	case config.StateFile:
		return dashboard.FileStore{Path: cfg.State.File}
	case config.StateTable:
		return database.NewStateStore(db, cfg.State.Name)
	}
	return nil
}

// originChecker allows same-origin upgrades plus any configured origins.
// A nil result keeps the hub's same-origin default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	hosts := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if u, err := url.Parse(a); err == nil {
			hosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Host)
		if host == strings.ToLower(r.Host) {
			return true
		}
		_, ok := hosts[host]
		return ok
	}
}
