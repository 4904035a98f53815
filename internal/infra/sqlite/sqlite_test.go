package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/distri-network/distri/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

var payer = domain.Pubkey{1, 2, 3}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	err = db.Update(context.Background(), func(tx domain.Tx) error {
		return tx.Create("k", payer, record{Name: "persisted"})
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()

	var got record
	err = db.View(context.Background(), func(tx domain.Tx) error {
		return tx.Get("k", &got)
	})
	if err != nil {
		t.Fatalf("View() error: %v", err)
	}
	if got.Name != "persisted" {
		t.Errorf("Name = %q, want persisted", got.Name)
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

func TestRecords_CreateGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx domain.Tx) error {
		return tx.Create("machine/a/1", payer, record{Name: "gpu", Count: 3})
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var got record
	err = db.View(ctx, func(tx domain.Tx) error {
		return tx.Get("machine/a/1", &got)
	})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Name != "gpu" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestRecords_CreateExisting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	create := func(tx domain.Tx) error { return tx.Create("k", payer, record{Name: "x"}) }
	if err := db.Update(ctx, create); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
	if err := db.Update(ctx, create); !errors.Is(err, domain.ErrExists) {
		t.Errorf("second Create() error = %v, want ErrExists", err)
	}
}

func TestRecords_GetMissing(t *testing.T) {
	db := newTestDB(t)
	err := db.View(context.Background(), func(tx domain.Tx) error {
		var r record
		return tx.Get("nope", &r)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestRecords_PutOverwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx domain.Tx) error {
		if err := tx.Create("k", payer, record{Count: 1}); err != nil {
			return err
		}
		return tx.Put("k", record{Count: 2})
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	// Payer survives the overwrite.
	var rc domain.Reclaim
	err = db.Update(ctx, func(tx domain.Tx) error {
		var r record
		if err := tx.Get("k", &r); err != nil {
			return err
		}
		if r.Count != 2 {
			t.Errorf("Count = %d, want 2", r.Count)
		}
		var derr error
		rc, derr = tx.Delete("k", payer)
		return derr
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if rc.Payer != payer {
		t.Errorf("Reclaim.Payer = %s, want %s", rc.Payer, payer)
	}
}

func TestRecords_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	beneficiary := domain.Pubkey{9}

	var rc domain.Reclaim
	err := db.Update(ctx, func(tx domain.Tx) error {
		if err := tx.Create("order/b/1", payer, record{Name: "order"}); err != nil {
			return err
		}
		var err error
		rc, err = tx.Delete("order/b/1", beneficiary)
		return err
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if rc.Beneficiary != beneficiary || rc.Bytes <= 0 || rc.Key != "order/b/1" {
		t.Errorf("Reclaim = %+v", rc)
	}

	err = db.View(ctx, func(tx domain.Tx) error {
		var r record
		return tx.Get("order/b/1", &r)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestRecords_DeleteMissing(t *testing.T) {
	db := newTestDB(t)
	err := db.Update(context.Background(), func(tx domain.Tx) error {
		_, err := tx.Delete("nope", payer)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRecords_ScanPrefix(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx domain.Tx) error {
		for _, k := range []string{"a/2", "a/1", "a/3", "ab/1", "b/1"} {
			if err := tx.Create(k, payer, record{Name: k}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	var keys []string
	err = db.View(ctx, func(tx domain.Tx) error {
		return tx.Scan("a/", func(key string, decode func(any) error) error {
			var r record
			if err := decode(&r); err != nil {
				return err
			}
			if r.Name != key {
				t.Errorf("decoded %q under key %q", r.Name, key)
			}
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	want := []string{"a/1", "a/2", "a/3"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestRecords_ScanStop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = db.Update(ctx, func(tx domain.Tx) error {
		for _, k := range []string{"p/1", "p/2", "p/3"} {
			if err := tx.Create(k, payer, record{}); err != nil {
				return err
			}
		}
		return nil
	})

	n := 0
	err := db.View(ctx, func(tx domain.Tx) error {
		return tx.Scan("p/", func(string, func(any) error) error {
			n++
			if n == 2 {
				return domain.ErrStopScan
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if n != 2 {
		t.Errorf("visited %d records, want 2", n)
	}
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestUpdate_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Update(ctx, func(tx domain.Tx) error {
		if err := tx.Create("k", payer, record{Name: "never"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	err = db.View(ctx, func(tx domain.Tx) error {
		var r record
		return tx.Get("k", &r)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("rolled back record visible: %v", err)
	}
}

func TestView_RejectsWrites(t *testing.T) {
	db := newTestDB(t)
	err := db.View(context.Background(), func(tx domain.Tx) error {
		return tx.Put("k", record{})
	})
	if err == nil {
		t.Error("Put inside View should fail")
	}
}

// ─── Node Info ──────────────────────────────────────────────────────────────

func TestNodeInfo(t *testing.T) {
	db := newTestDB(t)

	if v, err := db.GetNodeInfo("node_id"); err != nil || v != "" {
		t.Fatalf("GetNodeInfo(missing) = %q, %v", v, err)
	}
	if err := db.SetNodeInfo("node_id", "abc"); err != nil {
		t.Fatalf("SetNodeInfo() error: %v", err)
	}
	if err := db.SetNodeInfo("node_id", "def"); err != nil {
		t.Fatalf("SetNodeInfo() overwrite error: %v", err)
	}
	v, err := db.GetNodeInfo("node_id")
	if err != nil {
		t.Fatalf("GetNodeInfo() error: %v", err)
	}
	if v != "def" {
		t.Errorf("node_id = %q, want def", v)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/", "a0"},
		{"machine/", "machine0"},
		{"", ""},
		{"\xff", ""},
		{"a\xff", "b"},
	}
	for _, tt := range tests {
		if got := prefixEnd(tt.in); got != tt.want {
			t.Errorf("prefixEnd(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
