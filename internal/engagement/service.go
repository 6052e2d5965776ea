package engagement

import (
	"time"

	"gorm.io/gorm"

	"github.com/gracechapel/backend/internal/cache"
	"github.com/gracechapel/backend/internal/config"
)

// Options are the engagement tunables. Zero values get replaced by the
// defaults, so tests can set only what they exercise.
type Options struct {
	DedupTTL       time.Duration // one counted view per session+content inside this window
	RateLimit      int64         // counted views per IP per content per window
	RateWindow     time.Duration
	CacheTTL       time.Duration // stats snapshot cache in Redis
	SnapshotMaxAge time.Duration // stored snapshot older than this gets recomputed
	DriftTolerance int64         // recompute when |stored - live| total views exceeds this
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		DedupTTL:       30 * time.Minute,
		RateLimit:      10,
		RateWindow:     time.Hour,
		CacheTTL:       60 * time.Second,
		SnapshotMaxAge: 5 * time.Minute,
		DriftTolerance: 5,
	}
}

// OptionsFromConfig maps the env-driven engagement config onto Options
func OptionsFromConfig(cfg config.EngagementConfig) Options {
	return Options{
		DedupTTL:       cfg.DedupTTL,
		RateLimit:      int64(cfg.RateLimit),
		RateWindow:     cfg.RateWindow,
		CacheTTL:       cfg.StatsCacheTTL,
		SnapshotMaxAge: cfg.SnapshotMaxAge,
		DriftTolerance: cfg.DriftTolerance,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DedupTTL <= 0 {
		o.DedupTTL = def.DedupTTL
	}
	if o.RateLimit <= 0 {
		o.RateLimit = def.RateLimit
	}
	if o.RateWindow <= 0 {
		o.RateWindow = def.RateWindow
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = def.CacheTTL
	}
	if o.SnapshotMaxAge <= 0 {
		o.SnapshotMaxAge = def.SnapshotMaxAge
	}
	if o.DriftTolerance <= 0 {
		o.DriftTolerance = def.DriftTolerance
	}
	return o
}

// Service is the engagement facade: views, in-page engagement, shares,
// likes, and the stats read path. It owns no HTTP concerns.
type Service struct {
	db      *gorm.DB
	tracker ViewTracker
	cache   *cache.RedisClient // nil disables the stats snapshot cache
	opts    Options
}

// NewService wires the engagement facade. cache may be nil (tests,
// single-node deployments); the tracker must not be.
func NewService(db *gorm.DB, tracker ViewTracker, rc *cache.RedisClient, opts Options) *Service {
	return &Service{
		db:      db,
		tracker: tracker,
		cache:   rc,
		opts:    opts.withDefaults(),
	}
}

// Options returns the effective tunables
func (s *Service) Options() Options {
	return s.opts
}
