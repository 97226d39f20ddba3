package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/config"
	"github.com/abhisek/leetbuddy/internal/engine"
	"github.com/abhisek/leetbuddy/internal/enforce"
	"github.com/abhisek/leetbuddy/internal/logging"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/remote"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	catalog *catalog.Cache
	engine  *engine.Engine
	closers []func() error
}

// Close releases the store, the remote cache, and the log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}

// buildApp loads configuration, opens the store, and wires the engine.
func buildApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfgPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(config.Options{Path: cfgPath, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	a := &app{cfg: cfg, log: log, closers: []func() error{logCloser.Close}}

	src := catalog.EmbeddedSource()
	if cfg.Catalog.Dir != "" {
		src = catalog.DirSource(cfg.Catalog.Dir)
	}
	a.catalog = catalog.NewCache(src)

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath, store.WithResolver(a.catalog.Resolve))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, st.Close)

	rulesPath, err := cfg.RulesPath(dbPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}

	status, closeRemote := remote.NewSource(ctx, cfg.Remote, a.catalog.Resolve, log)
	a.closers = append(a.closers, closeRemote)

	loc := cfg.Location()
	a.engine = engine.New(engine.Options{
		Catalog:   a.catalog,
		Progress:  st.ProgressRepo(),
		Timers:    st.TimerRepo(),
		Settings:  st.SettingsRepo(),
		Events:    st.EventRepo(),
		Primitive: redirect.NewFilePrimitive(rulesPath),
		Remote:    status,
		Verifier: verify.Verifier{
			AllowUnverified: cfg.Verification.AllowUnverified,
			Location:        loc,
		},
		Enforce: enforce.Config{
			BypassDuration: cfg.Enforcement.BypassDuration,
			Cooldown:       cfg.Enforcement.Cooldown,
			Location:       loc,
		},
		RemoteTimeout: cfg.Remote.Timeout,
		Log:           log,
	})
	return a, nil
}

// withApp builds the app, runs fn, and closes the app.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// printJSON writes v when --json is set and reports whether it did.
func printJSON(cmd *cobra.Command, v any) (bool, error) {
	if asJSON, _ := cmd.Flags().GetBool("json"); !asJSON {
		return false, nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

