package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/config"
	"github.com/sells-group/isolysis/internal/resilience"
	"github.com/sells-group/isolysis/internal/spatial"
	"github.com/sells-group/isolysis/internal/store"
	"github.com/sells-group/isolysis/pkg/isoline"
)

// buildProviders constructs the isoline provider registry from configuration.
// The cascade entry tries mapbox first and falls back to iso4app.
func buildProviders(cfg *config.Config) map[string]isoline.Provider {
	providers := map[string]isoline.Provider{
		"mapbox": isoline.NewMapboxProvider(isoline.MapboxOptions{
			Token:     cfg.Providers.Mapbox.Token,
			BaseURL:   cfg.Providers.Mapbox.BaseURL,
			Profile:   cfg.Providers.Mapbox.Profile,
			RateLimit: cfg.Providers.Mapbox.RateLimit,
			Retry:     resilience.DefaultRetryConfig(),
		}),
		"iso4app": isoline.NewIso4AppProvider(isoline.Iso4AppOptions{
			Key:       cfg.Providers.Iso4App.Key,
			BaseURL:   cfg.Providers.Iso4App.BaseURL,
			Mobility:  cfg.Providers.Iso4App.Mobility,
			SpeedType: cfg.Providers.Iso4App.SpeedType,
			RateLimit: cfg.Providers.Iso4App.RateLimit,
			Retry:     resilience.DefaultRetryConfig(),
		}),
	}
	providers["cascade"] = isoline.NewCascadeProvider(providers["mapbox"], providers["iso4app"])
	return providers
}

// selectProvider resolves a provider by name, falling back to the configured
// default.
func selectProvider(cfg *config.Config, name string) (isoline.Provider, error) {
	if name == "" {
		name = cfg.Providers.Default
	}
	p, ok := buildProviders(cfg)[name]
	if !ok {
		return nil, eris.Errorf("unknown provider %q", name)
	}
	if !p.Available() {
		return nil, eris.Errorf("provider %q is not configured (missing credentials)", name)
	}
	return p, nil
}

// openStore opens the configured analysis store and runs migrations.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// analysisOptions builds spatial analysis options from configuration.
func analysisOptions(cfg *config.Config) spatial.Options {
	opts := spatial.DefaultOptions()
	if cfg.Analysis.MinOverlap > 0 {
		opts.MinOverlap = cfg.Analysis.MinOverlap
	}
	if cfg.Analysis.MaxCombinations > 0 {
		opts.MaxCombinations = cfg.Analysis.MaxCombinations
	}
	if cfg.Analysis.ProductionKey != "" {
		opts.ProductionKey = cfg.Analysis.ProductionKey
	}
	return opts
}

// writeOutput writes v as indented JSON to the given path, or stdout when
// path is empty.
func writeOutput(path string, v any) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create output file %s", path)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
