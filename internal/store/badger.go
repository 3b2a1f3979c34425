package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/roomdrop/internal/metrics"
)

const badgerGCInterval = 10 * time.Minute

// BadgerStore keeps room documents in an embedded Badger database for
// single-node deployments. Expiry uses Badger's native entry TTL.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewBadgerStore opens (or creates) a Badger database at path and starts
// background value-log garbage collection.
func NewBadgerStore(path string, logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &BadgerStore{
		db:     db,
		logger: logger,
		stop:   make(chan struct{}),
	}

	// Value-log GC is not available in in-memory mode.
	if path != "" {
		s.wg.Add(1)
		go s.gcLoop()
	}

	return s, nil
}

func (s *BadgerStore) gcLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for {
				// RunValueLogGC returns an error once there is nothing left to rewrite.
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn().Err(err).Msg("badger value log gc failed")
					}
					break
				}
			}
		}
	}
}

// Close stops garbage collection and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

// Get returns the raw document stored under key.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer observeBadger("get", time.Now())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value under key with the given ttl. Badger tracks expiry with
// second granularity.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	defer observeBadger("set", time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}

	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Del removes key.
func (s *BadgerStore) Del(ctx context.Context, key string) (int64, error) {
	defer observeBadger("del", time.Now())

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		removed = 1
		return nil
	})
	return removed, err
}

// TTL returns the remaining lifetime of key.
func (s *BadgerStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	defer observeBadger("ttl", time.Now())

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var expiresAt uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		expiresAt = item.ExpiresAt()
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	if expiresAt == 0 {
		return NoExpiry, nil
	}
	remaining := time.Until(time.Unix(int64(expiresAt), 0))
	if remaining <= 0 {
		return 0, ErrNotFound
	}
	return remaining, nil
}

func observeBadger(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues("badger", op).Observe(time.Since(start).Seconds())
}
