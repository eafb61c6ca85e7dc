package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "checkpoint/"

// BadgerConfig configures an embedded BadgerDB repository.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in memory, for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil silences it.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
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

// BadgerRepository stores checkpoints in BadgerDB under the "checkpoint/"
// key prefix. Each Update runs in a single read-write transaction.
type BadgerRepository struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a BadgerDB repository.
func OpenBadger(cfg BadgerConfig) (*BadgerRepository, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, repoErr("open", "", errors.New("path is required for persistent database"))
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, repoErr("open", "", fmt.Errorf("create database directory %s: %w", cfg.Path, err))
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, repoErr("open", "", fmt.Errorf("open badger database: %w", err))
	}
	return &BadgerRepository{db: db}, nil
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}

// Get implements Repository
func (r *BadgerRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, repoErr("get", key, err)
	}

	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, repoErr("get", key, err)
	}
	return value, true, nil
}

// fnError marks errors returned by an Update callback so they pass through
// unwrapped.
type fnError struct{ err error }

func (e fnError) Error() string { return e.err.Error() }

// Update implements Repository
func (r *BadgerRepository) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return repoErr("update", key, err)
	}

	k := badgerKey(key)
	err := r.db.Update(func(txn *badger.Txn) error {
		var current []byte
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if current, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}

		next, err := fn(current)
		if err != nil {
			return fnError{err: err}
		}
		return txn.Set(k, next)
	})

	var fe fnError
	if errors.As(err, &fe) {
		return fe.err
	}
	return repoErr("update", key, err)
}

// Delete implements Repository
func (r *BadgerRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return repoErr("delete", key, err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	return repoErr("delete", key, err)
}

// List implements Repository. Keys are visited in ascending order.
func (r *BadgerRepository) List(ctx context.Context, fn func(key string, value []byte) error) error {
	prefix := []byte(badgerKeyPrefix)
	return r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return repoErr("list", "", err)
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return repoErr("list", string(item.Key()), err)
			}
			key := string(item.Key()[len(prefix):])
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Repository
func (r *BadgerRepository) Close() error {
	return repoErr("close", "", r.db.Close())
}
