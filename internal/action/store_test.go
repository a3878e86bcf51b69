package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duskline/irkit/internal/sink"
)

func TestRunStoreCollectsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.log"), []byte("a"), 0o640); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.log"), []byte("b"), 0o640); err != nil {
		t.Fatalf("write file: %v", err)
	}

	storedDir := filepath.Join(dir, "stored_files")
	if err := os.Mkdir(storedDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	proc := sink.New(storedDir, filepath.Join(dir, "loot_files"), filepath.Join(dir, "metadata.csv"), 0)

	res := RunStore(context.Background(), StoreParams{
		Patterns: filepath.Join(dir, "*.log"),
		Sink:     proc,
	}, Options{StartTime: time.Now()})

	if !res.Success {
		t.Fatalf("RunStore() failed: %s", res.ErrorMessage)
	}
	if proc.StoredCount() != 2 {
		t.Errorf("StoredCount() = %d, want 2", proc.StoredCount())
	}
}
