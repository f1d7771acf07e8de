package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerEngine is the on-disk KVEngine. Every write is a Badger
// transaction, so WriteBatch is all-or-nothing.
type BadgerEngine struct {
	db     *badger.DB
	cfg    BadgerConfig
	memory bool
	logger *slog.Logger
	closed atomic.Bool

	lastGC    atomic.Int64 // unix millis
	reclaimed atomic.Uint64

	stop context.CancelFunc
	done chan struct{}
}

// NewBadgerEngine opens the database under cfg.Dir, or a throwaway one
// when cfg.InMemory is set, and starts periodic value log GC.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	dir := cfg.Dir
	if cfg.InMemory {
		dir = ""
	}
	bc := cfg.Badger
	opts := badger.DefaultOptions(dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(bc.SyncWrites).
		WithLogger(badgerLogger{logger})
	if bc.CacheSize > 0 {
		opts = opts.WithBlockCacheSize(bc.CacheSize)
	}
	if bc.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(bc.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &BadgerEngine{
		db:     db,
		cfg:    bc,
		memory: cfg.InMemory,
		logger: logger,
		stop:   cancel,
		done:   make(chan struct{}),
	}
	go e.runGC(ctx, e.gcInterval())

	logger.Info("badger opened", "dir", dir, "in_memory", cfg.InMemory, "sync_writes", bc.SyncWrites)
	return e, nil
}

func (e *BadgerEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	var b Batch
	b.Set(key, value)
	return e.WriteBatch(ctx, &b)
}

func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	var b Batch
	b.Delete(key)
	return e.WriteBatch(ctx, &b)
}

// Scan visits keys under prefix in byte order until fn returns false or
// ctx is cancelled.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   64,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %q: %w", item.Key(), err)
			}
			if !fn(item.KeyCopy(nil), v) {
				return nil
			}
		}
		return nil
	})
}

// WriteBatch commits batch in a single transaction. A batch larger than
// one Badger transaction fails as a whole.
func (e *BadgerEngine) WriteBatch(ctx context.Context, batch *Batch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			if op.Value == nil {
				if err := txn.Delete(op.Key); err != nil {
					return fmt.Errorf("delete %q: %w", op.Key, err)
				}
				continue
			}
			if err := txn.Set(op.Key, op.Value); err != nil {
				return fmt.Errorf("set %q: %w", op.Key, err)
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("badger: batch of %d writes exceeds one transaction: %w", batch.Len(), err)
	}
	return err
}

// GC rewrites value log files until Badger finds nothing worth
// reclaiming. Badger does not report byte counts, so each rewritten file
// is counted as ValueLogFileSize.
func (e *BadgerEngine) GC(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if e.memory {
		return 0, nil
	}
	start := time.Now()
	var n uint64
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("badger gc: %w", err)
		}
		n += uint64(e.cfg.ValueLogFileSize)
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	e.lastGC.Store(time.Now().UnixMilli())
	e.reclaimed.Add(n)
	e.logger.Debug("value log gc", "reclaimed_bytes", n, "took", time.Since(start))
	return n, nil
}

func (e *BadgerEngine) Stats(context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := e.db.Size()
	return &KVStats{
		TotalSize:        uint64(lsm + vlog),
		LSMSize:          uint64(lsm),
		ValueLogSize:     uint64(vlog),
		LastGCTime:       e.lastGC.Load(),
		GCBytesReclaimed: e.reclaimed.Load(),
	}, nil
}

// Close stops GC and closes the database. Later calls return nil.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.stop()
	<-e.done
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	e.logger.Info("badger closed")
	return nil
}

func (e *BadgerEngine) gcInterval() time.Duration {
	d, err := time.ParseDuration(e.cfg.GCInterval)
	if err != nil || d <= 0 {
		e.logger.Warn("bad gc_interval, using 10m", "value", e.cfg.GCInterval)
		return 10 * time.Minute
	}
	return d
}

func (e *BadgerEngine) runGC(ctx context.Context, every time.Duration) {
	defer close(e.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			gcCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if _, err := e.GC(gcCtx); err != nil && ctx.Err() == nil {
				e.logger.Error("value log gc failed", "error", err)
			}
			cancel()
		}
	}
}

// RegisterMetrics exposes size and GC figures, read from Stats at
// scrape time.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(badgerCollector{e})
}

var (
	badgerLSMDesc = prometheus.NewDesc("tokvault_badger_lsm_size_bytes",
		"Badger LSM tree size in bytes.", nil, nil)
	badgerVlogDesc = prometheus.NewDesc("tokvault_badger_value_log_size_bytes",
		"Badger value log size in bytes.", nil, nil)
	badgerTotalDesc = prometheus.NewDesc("tokvault_badger_total_size_bytes",
		"Badger LSM plus value log size in bytes.", nil, nil)
	badgerLastGCDesc = prometheus.NewDesc("tokvault_badger_last_gc_timestamp_seconds",
		"Unix time of the last completed value log GC.", nil, nil)
	badgerReclaimedDesc = prometheus.NewDesc("tokvault_badger_gc_bytes_reclaimed_total",
		"Estimated bytes reclaimed by value log GC.", nil, nil)
)

type badgerCollector struct{ e *BadgerEngine }

func (c badgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- badgerLSMDesc
	ch <- badgerVlogDesc
	ch <- badgerTotalDesc
	ch <- badgerLastGCDesc
	ch <- badgerReclaimedDesc
}

func (c badgerCollector) Collect(ch chan<- prometheus.Metric) {
	s, err := c.e.Stats(context.Background())
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(badgerLSMDesc, prometheus.GaugeValue, float64(s.LSMSize))
	ch <- prometheus.MustNewConstMetric(badgerVlogDesc, prometheus.GaugeValue, float64(s.ValueLogSize))
	ch <- prometheus.MustNewConstMetric(badgerTotalDesc, prometheus.GaugeValue, float64(s.TotalSize))
	ch <- prometheus.MustNewConstMetric(badgerLastGCDesc, prometheus.GaugeValue, float64(s.LastGCTime)/1000)
	ch <- prometheus.MustNewConstMetric(badgerReclaimedDesc, prometheus.CounterValue, float64(s.GCBytesReclaimed))
}

// badgerLogger routes Badger's printf logging into slog. Badger is chatty
// at info, so that goes to debug.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, args ...any)   { b.l.Error(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Warningf(f string, args ...any) { b.l.Warn(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Infof(f string, args ...any)    { b.l.Debug(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Debugf(f string, args ...any)   { b.l.Debug(fmt.Sprintf(f, args...)) }
