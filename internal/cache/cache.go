// Package cache stores finished repository reports in an embedded badger
// database, keyed by a digest of the configuration and every source file.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/phobologic/misfinder/internal/model"
)

const keyPrefix = "report/"

// Store is a report cache. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
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

// Open opens (creating if needed) a persistent cache in dir. A nil logger
// silences badger.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithSyncWrites(true), logger)
}

// OpenInMemory opens a cache that lives only as long as the Store.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key for a repository from the configuration digest
// and its sources. Sources must be in discovery order.
func Key(configDigest string, sources []model.SourceFile) string {
	h := sha256.New()
	h.Write([]byte(configDigest))
	for _, src := range sources {
		fmt.Fprintf(h, "\x00%s\x00%d\x00", src.Path, len(src.Text))
		h.Write(src.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the report stored under key. The bool is false on a miss.
func (s *Store) Get(key string) (*model.RepoReport, bool, error) {
	var report model.RepoReport
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached report: %w", err)
	}
	return &report, true, nil
}

// Put stores report under key, replacing any previous value.
func (s *Store) Put(key string, report *model.RepoReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("write cached report: %w", err)
	}
	return nil
}
