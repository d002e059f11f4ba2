package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/scorer"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/territory"
	"github.com/sells-group/prospect-cli/pkg/geocode"
)

// routingEnv holds the store and routing components shared by the
// import, assign, score, and serve commands.
type routingEnv struct {
	Store    store.Store
	Matcher  *territory.Matcher
	Scorer   *scorer.Scorer
	Geocoder geocode.Client

	lock *flock.Flock
}

// envOptions selects what initEnv sets up for a command.
type envOptions struct {
	// Mode is passed to config validation.
	Mode string
	// Lock takes the import lock file so batch jobs do not overlap.
	Lock bool
	// Sellers loads the territory file. RequireSellers fails when it is missing.
	Sellers        bool
	RequireSellers bool
}

// Close releases the lock and the store.
func (e *routingEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.lock != nil {
		_ = e.lock.Unlock()
	}
}

// initEnv validates config, opens and migrates the store, syncs sellers
// from the territory file, and builds the scorer and geocoder. Callers
// should defer env.Close().
func initEnv(ctx context.Context, opts envOptions) (*routingEnv, error) {
	if err := cfg.Validate(opts.Mode); err != nil {
		return nil, err
	}

	env := &routingEnv{}

	if opts.Lock {
		lk, err := acquireLock(cfg.Import.LockFile)
		if err != nil {
			return nil, err
		}
		env.lock = lk
	}

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Store = st

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	scoreCfg := scorer.WithDefaults(cfg.Scorer)
	if err := scorer.ValidateConfig(scoreCfg); err != nil {
		env.Close()
		return nil, err
	}
	env.Scorer = scorer.New(scoreCfg)

	env.Matcher = territory.NewMatcher(nil)
	if opts.Sellers {
		m, err := syncSellers(ctx, st, cfg.Territory.File, opts.RequireSellers)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Matcher = m
	}

	env.Geocoder = newGeocoder(st)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospect.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func acquireLock(path string) (*flock.Flock, error) {
	lk := flock.New(path)
	ok, err := lk.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "lock %s", path)
	}
	if !ok {
		return nil, eris.Errorf("another import is running (lock %s is held)", path)
	}
	return lk, nil
}

// syncSellers loads the territory file, upserts its sellers so lead
// assignments can reference them, and builds the matcher. A missing file
// yields an empty matcher unless required.
func syncSellers(ctx context.Context, st store.Store, path string, required bool) (*territory.Matcher, error) {
	if path == "" {
		if required {
			return nil, eris.New("territory file is required (PROSPECT_TERRITORY_FILE)")
		}
		return territory.NewMatcher(nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !required {
		zap.L().Warn("territory file not found, leads will stay unassigned", zap.String("file", path))
		return territory.NewMatcher(nil), nil
	}

	sellers, err := territory.LoadSellersFile(path)
	if err != nil {
		return nil, err
	}
	if err := st.UpsertSellers(ctx, sellers); err != nil {
		return nil, eris.Wrap(err, "save sellers")
	}

	m := territory.NewMatcher(sellers)
	zap.L().Info("sellers loaded",
		zap.String("file", path),
		zap.Int("sellers", len(sellers)),
		zap.Int("active", m.Len()),
	)
	return m, nil
}

// newGeocoder builds the postal lookup and geocoding client from config.
func newGeocoder(cache geocode.Cache) geocode.Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Geocode.MaxRetries + 1

	opts := []geocode.Option{
		geocode.WithViaCEPURL(cfg.Geocode.ViaCEPURL),
		geocode.WithNominatimURL(cfg.Geocode.NominatimURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
		geocode.WithRetry(retry),
	}
	if cfg.Geocode.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs)*time.Second))
	}
	if cfg.Geocode.CacheEnabled {
		opts = append(opts, geocode.WithCache(cache))
	}
	return geocode.NewClient(opts...)
}
