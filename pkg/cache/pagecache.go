package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"webrag/pkg/log"
	"webrag/pkg/models"
	"webrag/pkg/utils"
)

const (
	pageKeyPrefix = "page:"   // Prefix for page URL keys in DB
	cacheDBDir    = "page_db" // Subdirectory name within the cache dir for Badger DB files
)

// PageCache stores fully extracted page records in BadgerDB, keyed by
// normalized URL, so repeat crawls of a site can skip rendering and fetching.
// Whether a crawl consults or fills the cache is decided by the CacheMode
// the caller runs with; the cache itself only gets and puts.
type PageCache struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Len
}

// NewPageCache opens (or creates) the page cache for siteDomain under cacheDir
func NewPageCache(cacheDir, siteDomain string, logger *logrus.Entry) (*PageCache, error) {
	c := &PageCache{log: logger}

	// Each site gets its own DB directory so caches never mix
	dbDirName := utils.SanitizeFilename(siteDomain) + "_" + cacheDBDir
	dbPath := filepath.Join(cacheDir, dbDirName)

	logger.Infof("Opening page cache at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1) // Only the latest record per URL matters

	var err error
	c.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	// The cache persists across runs, so count existing entries up front
	count, err := c.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing cache entries: %v", err)
	} else {
		c.keyCount.Store(int64(count))
	}

	logger.Infof("Page cache opened with %d entries", c.keyCount.Load())
	return c, nil
}

// countKeys performs a one-time full key scan (used only at open).
func (c *PageCache) countKeys() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (c *PageCache) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Get returns the cached record for normalizedURL, reporting whether it exists
func (c *PageCache) Get(normalizedURL string) (*models.PageRecord, bool, error) {
	if c.db == nil {
		return nil, false, errors.New("page cache not initialized")
	}
	key := []byte(pageKeyPrefix + normalizedURL)

	var record *models.PageRecord
	errView := c.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil // Miss, not an error
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.PageRecord
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				// A corrupt entry behaves like a miss; the page gets refetched
				c.log.Warnf("Failed to unmarshal cached page for key '%s': %v. Treating as miss.", string(key), errJSON)
				return nil
			}
			record = &decoded
			return nil
		})
	})

	if errView != nil {
		c.log.Errorf("DB View error in Get for key '%s': %v", string(key), errView)
		return nil, false, errView
	}
	return record, record != nil, nil
}

// Put stores record under its normalized URL, overwriting any previous entry
func (c *PageCache) Put(record *models.PageRecord) error {
	if c.db == nil {
		return errors.New("page cache not initialized")
	}
	key := []byte(pageKeyPrefix + record.URL)

	recordBytes, errJSON := json.Marshal(record)
	if errJSON != nil {
		wrappedErr := fmt.Errorf("%w: failed to marshal page record for key '%s': %w", utils.ErrParsing, string(key), errJSON)
		c.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := c.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, recordBytes))
	})

	if err != nil {
		c.log.WithField("key", string(key)).Errorf("DB Update error in Put: %v", err)
		return fmt.Errorf("%w: storing page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		c.keyCount.Add(1)
	}
	return nil
}

// Len returns the cached entry count (O(1), maintained by atomic increments on writes)
func (c *PageCache) Len() int {
	return int(c.keyCount.Load())
}

// Close closes the underlying database
func (c *PageCache) Close() error {
	if c.db != nil && !c.db.IsClosed() {
		c.log.Info("Closing page cache...")
		if err := c.db.Close(); err != nil {
			c.log.Errorf("Error closing page cache: %v", err)
			return err
		}
		return nil
	}
	return nil
}
