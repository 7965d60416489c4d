package credentials

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grump-ai/gateway/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestPool_RotationOrder(t *testing.T) {
	source := NewStaticSource("A", "B", "C")
	pool := NewPool(source, time.Hour, quietLogger(), nil)

	want := []Credential{"A", "B", "C", "A", "B", "C"}
	for i, expected := range want {
		got, ok := pool.Next()
		if !ok {
			t.Fatalf("Next() returned no credential at call %d", i)
		}
		if got != expected {
			t.Errorf("Next() call %d = %s, want %s", i, got, expected)
		}
	}
}

func TestPool_NeverEmptyWhileConfigured(t *testing.T) {
	pool := NewPool(NewStaticSource("only"), time.Hour, quietLogger(), nil)

	for i := 0; i < 100; i++ {
		if _, ok := pool.Next(); !ok {
			t.Fatal("Next() must always return a credential while the pool is non-empty")
		}
	}
}

func TestPool_EmptyPool(t *testing.T) {
	pool := NewPool(NewStaticSource(), time.Hour, quietLogger(), nil)

	if pool.HasCredentials() {
		t.Error("HasCredentials() = true for empty pool")
	}
	if _, ok := pool.Next(); ok {
		t.Error("Next() must report ok=false for an empty pool")
	}
}

func TestPool_RefreshPicksUpNewCredentials(t *testing.T) {
	source := NewStaticSource()
	pool := NewPool(source, time.Nanosecond, quietLogger(), nil)

	if pool.HasCredentials() {
		t.Fatal("Pool should start empty")
	}

	source.Set("fresh")
	time.Sleep(2 * time.Nanosecond)

	cred, ok := pool.Next()
	if !ok || cred != "fresh" {
		t.Errorf("Next() after refresh = (%q, %v), want (fresh, true)", cred, ok)
	}
}

func TestPool_RefreshIntervalGates(t *testing.T) {
	source := NewStaticSource("old")
	pool := NewPool(source, time.Hour, quietLogger(), nil)

	source.Set("new")
	pool.Refresh()

	if cred, _ := pool.Next(); cred != "old" {
		t.Errorf("Refresh inside the interval must not reload; got %s", cred)
	}

	pool.ForceRefresh()
	if cred, _ := pool.Next(); cred != "new" {
		t.Errorf("ForceRefresh must reload; got %s", cred)
	}
}

func TestPool_SourceErrorKeepsCurrentList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys")
	if err := os.WriteFile(path, []byte("k1,k2"), 0600); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(FileSource{Path: path}, time.Hour, quietLogger(), nil)
	if pool.Size() != 2 {
		t.Fatalf("Size = %d, want 2", pool.Size())
	}

	// A vanished file loads as empty (configuration condition), replacing
	// the list; a read error keeps the current one. Exercise the former.
	os.Remove(path)
	pool.ForceRefresh()
	if pool.HasCredentials() {
		t.Error("Missing file should drain the pool to empty")
	}
}

func TestEnvSource_CommaDelimited(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEYS", " sk-a, sk-b ,,sk-c ")

	list, err := EnvSource{Var: "TEST_GATEWAY_KEYS"}.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("Loaded %d credentials, want 3", len(list))
	}
	if list[0] != "sk-a" || list[2] != "sk-c" {
		t.Errorf("Unexpected list: %v", len(list))
	}
}

func TestFileSource_NewlineDelimited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys")
	if err := os.WriteFile(path, []byte("sk-a\nsk-b\n"), 0600); err != nil {
		t.Fatal(err)
	}

	list, err := FileSource{Path: path}.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1] != "sk-b" {
		t.Errorf("Loaded list has %d entries", len(list))
	}
}

func TestFileSource_MissingFileIsEmptyNotError(t *testing.T) {
	list, err := FileSource{Path: filepath.Join(t.TempDir(), "absent")}.Load()
	if err != nil {
		t.Fatalf("Missing file should not error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Loaded %d entries from missing file", len(list))
	}
}

func TestFileSource_WatchTriggersOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys")
	if err := os.WriteFile(path, []byte("sk-a"), 0600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 1)
	stop, err := FileSource{Path: path}.Watch(quietLogger(), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("sk-a,sk-b"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Watcher did not fire on write")
	}
}
