// Package badger implements domain.Store on Badger, an embedded LSM
// key-value store with optimistic (serializable snapshot) transactions.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/distri-network/distri/internal/domain"
)

// DefaultConflictRetries bounds how often an operation is re-run after
// losing a write conflict.
const DefaultConflictRetries = 8

// Store implements domain.Store with Badger DB.
type Store struct {
	db      *badger.DB
	retries int
}

var _ domain.Store = (*Store)(nil)

// Open opens (or creates) a store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir))
	opts.Logger = nil                         // keep badger quiet, the daemon logs
	opts = opts.WithValueLogFileSize(1 << 24) // small value log for node-local data
	return open(opts)
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, retries: DefaultConflictRetries}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("badger: closed")
	}
	return nil
}

// Update runs fn in a read-write transaction. When a concurrent writer
// commits first, fn is re-run from scratch against the new state, so its
// precondition checks see the winner's writes.
func (s *Store) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(&txnAdapter{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("update: %w after %d attempts", err, s.retries+1)
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&txnAdapter{txn: txn})
	})
}

// ─── Tx ─────────────────────────────────────────────────────────────────────

// envelope carries record bookkeeping next to the value.
type envelope struct {
	Payer     string          `json:"payer,omitempty"`
	CreatedAt int64           `json:"created_at"`
	Value     json.RawMessage `json:"value"`
}

type txnAdapter struct {
	txn *badger.Txn
}

func (t *txnAdapter) load(key string) (*envelope, error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, err
	}
	var env envelope
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &env)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &env, nil
}

func (t *txnAdapter) store(key string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.txn.Set([]byte(key), data)
}

func (t *txnAdapter) Create(key string, payer domain.Pubkey, v any) error {
	_, err := t.load(key)
	if err == nil {
		return fmt.Errorf("%w: %s", domain.ErrExists, key)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.store(key, envelope{
		Payer:     payer.String(),
		CreatedAt: time.Now().Unix(),
		Value:     value,
	})
}

func (t *txnAdapter) Get(key string, v any) error {
	env, err := t.load(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (t *txnAdapter) Put(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	env := envelope{CreatedAt: time.Now().Unix()}
	if prev, err := t.load(key); err == nil {
		env.Payer = prev.Payer
		env.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	env.Value = value
	return t.store(key, env)
}

func (t *txnAdapter) Delete(key string, refundTo domain.Pubkey) (domain.Reclaim, error) {
	rc := domain.Reclaim{Key: key, Beneficiary: refundTo}
	env, err := t.load(key)
	if err != nil {
		return rc, err
	}
	rc.Bytes = int64(len(env.Value))
	if env.Payer != "" {
		if pk, err := domain.ParsePubkey(env.Payer); err == nil {
			rc.Payer = pk
		}
	}
	return rc, t.txn.Delete([]byte(key))
}

func (t *txnAdapter) Scan(prefix string, fn func(key string, decode func(v any) error) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	// Collect first: fn may write through the same transaction.
	type kv struct {
		key  string
		data []byte
	}
	var items []kv

	it := t.txn.NewIterator(opts)
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		data, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return err
		}
		items = append(items, kv{key: string(item.KeyCopy(nil)), data: data})
	}
	it.Close()

	for _, item := range items {
		decode := func(v any) error {
			var env envelope
			if err := json.Unmarshal(item.data, &env); err != nil {
				return fmt.Errorf("decode %s: %w", item.key, err)
			}
			if err := json.Unmarshal(env.Value, v); err != nil {
				return fmt.Errorf("decode %s: %w", item.key, err)
			}
			return nil
		}
		if err := fn(item.key, decode); err != nil {
			if errors.Is(err, domain.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}
