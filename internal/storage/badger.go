package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// accountKeyPrefix prefixes every account key: account/<username>.
var accountKeyPrefix = []byte("account/")

// BadgerConfig contains Badger tuning parameters for the registry store.
type BadgerConfig struct {
	// GCInterval is the interval between value log GC runs (default: 10m).
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a rewrite (default: 0.5).
	GCThreshold float64

	// SyncWrites fsyncs every commit (default: true).
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// badgerRecord carries the registration sequence alongside the account.
type badgerRecord struct {
	accountRecord
	Seq int `json:"Seq"`
}

// BadgerStore keeps one key per account in a Badger database.
//
// Save replaces the whole collection inside a single transaction, so readers
// never observe a partially written registry.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBadgerStore opens (or creates) the Badger database in dir.
func NewBadgerStore(dir string, cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if dir == "" {
		return nil, errors.New("storage: badger dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultBadgerConfig()
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaults.GCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = defaults.GCThreshold
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.gcLoop()

	logger.Info("badger registry store opened", "dir", dir, "gc_interval", cfg.GCInterval)
	return s, nil
}

// Load returns every account ordered by registration sequence.
func (s *BadgerStore) Load(ctx context.Context) ([]*domain.Account, error) {
	var records []badgerRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = accountKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec badgerRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("storage: load accounts: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})

	accounts := make([]*domain.Account, 0, len(records))
	for _, rec := range records {
		accounts = append(accounts, rec.toAccount())
	}
	return accounts, nil
}

// Save replaces every stored account with accounts.
func (s *BadgerStore) Save(ctx context.Context, accounts []*domain.Account) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = accountKeyPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for i, a := range accounts {
			value, err := json.Marshal(badgerRecord{accountRecord: newAccountRecord(a), Seq: i})
			if err != nil {
				return err
			}
			if err := txn.Set(accountKey(a.Username), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return ErrClosed
		}
		return fmt.Errorf("storage: save accounts: %w", err)
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("storage: close badger: %w", cerr)
		}
	})
	return err
}

// RegisterMetrics registers Badger size gauges with registry.
// Returns the store for method chaining.
func (s *BadgerStore) RegisterMetrics(registry prometheus.Registerer) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "filevault",
		Subsystem: "registry_badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "filevault",
		Subsystem: "registry_badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	registry.MustRegister(s.metricsLSMSize, s.metricsValueLogSize)
	s.updateMetrics()
	return s
}

func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil {
		return
	}
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
}

// gc rewrites value log files until Badger reports nothing left to reclaim.
func (s *BadgerStore) gc() error {
	for {
		if err := s.db.RunValueLogGC(s.cfg.GCThreshold); err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return err
		}
	}
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.gc(); err != nil {
				s.logger.Error("badger gc failed", "error", err)
			}
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

func accountKey(username string) []byte {
	return append(bytes.Clone(accountKeyPrefix), username...)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
