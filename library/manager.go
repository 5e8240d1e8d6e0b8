package library

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
// It owns the store and hands it to each service.
type LibraryManager struct {
	Catalog *Catalog
	Members *Membership
	Lending *Circulation

	db  *Database
	now func() time.Time
}

type options struct {
	log         *zap.Logger
	registerer  prometheus.Registerer
	seed        bool
	busyTimeout time.Duration
	now         func() time.Time
}

// Option configures NewLibraryManager.
type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegisterer registers the lending counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSeed inserts the demonstration books and members into empty tables.
func WithSeed(seed bool) Option {
	return func(o *options) { o.seed = seed }
}

func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(ctx context.Context, dbPath string, opts ...Option) (*LibraryManager, error) {
	o := options{
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := NewDatabase(dbPath, o.log.Named("store"), o.busyTimeout)
	if err != nil {
		return nil, err
	}

	lm := &LibraryManager{
		Catalog: NewCatalog(db, o.log),
		Members: NewMembership(db, o.log),
		Lending: NewCirculation(db, NewMetrics(o.registerer), o.log),
		db:      db,
		now:     o.now,
	}

	if o.seed {
		if err := db.SeedDemoData(ctx, lm.Today()); err != nil {
			db.Close()
			return nil, err
		}
	}
	return lm, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Today is the current calendar date according to the manager's clock.
func (lm *LibraryManager) Today() Date { return DateOf(lm.now()) }
