package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/distri-network/distri/internal/domain"
)

// ─── Record Repository ──────────────────────────────────────────────────────

// recordTx implements domain.Tx over one SQL transaction.
type recordTx struct {
	tx *sql.Tx
}

func (t *recordTx) Create(key string, payer domain.Pubkey, v any) error {
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM records WHERE key = ?`, key).Scan(&one)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrExists, key)
	case err != sql.ErrNoRows:
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = t.tx.Exec(
		`INSERT INTO records (key, value, payer, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, data, payer.String(), len(data), nowUnix(),
	)
	return err
}

func (t *recordTx) Get(key string, v any) error {
	var data []byte
	err := t.tx.QueryRow(`SELECT value FROM records WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (t *recordTx) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = t.tx.Exec(
		`INSERT INTO records (key, value, payer, size, created_at) VALUES (?, ?, '', ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			size=excluded.size`,
		key, data, len(data), nowUnix(),
	)
	return err
}

func (t *recordTx) Delete(key string, refundTo domain.Pubkey) (domain.Reclaim, error) {
	rc := domain.Reclaim{Key: key, Beneficiary: refundTo}

	var payer string
	err := t.tx.QueryRow(`SELECT payer, size FROM records WHERE key = ?`, key).Scan(&payer, &rc.Bytes)
	if err == sql.ErrNoRows {
		return rc, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return rc, err
	}
	if payer != "" {
		if pk, err := domain.ParsePubkey(payer); err == nil {
			rc.Payer = pk
		}
	}

	if _, err := t.tx.Exec(`DELETE FROM records WHERE key = ?`, key); err != nil {
		return rc, err
	}
	return rc, nil
}

func (t *recordTx) Scan(prefix string, fn func(key string, decode func(v any) error) error) error {
	query := `SELECT key, value FROM records WHERE key >= ? ORDER BY key`
	args := []any{prefix}
	if end := prefixEnd(prefix); end != "" {
		query = `SELECT key, value FROM records WHERE key >= ? AND key < ? ORDER BY key`
		args = append(args, end)
	}

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return err
	}

	// Drain first: fn may issue statements on the same transaction.
	type kv struct {
		key  string
		data []byte
	}
	var items []kv
	for rows.Next() {
		var item kv
		if err := rows.Scan(&item.key, &item.data); err != nil {
			rows.Close()
			return err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, item := range items {
		decode := func(v any) error {
			if err := json.Unmarshal(item.data, v); err != nil {
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

// readOnlyTx rejects writes inside View.
type readOnlyTx struct {
	recordTx
}

var errReadOnly = errors.New("write in read-only transaction")

func (t *readOnlyTx) Create(string, domain.Pubkey, any) error { return errReadOnly }
func (t *readOnlyTx) Put(string, any) error                    { return errReadOnly }
func (t *readOnlyTx) Delete(key string, _ domain.Pubkey) (domain.Reclaim, error) {
	return domain.Reclaim{Key: key}, errReadOnly
}
