package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write test file: %v", err)
	}
}

func TestChecksumNameIsStableAndFortyChars(t *testing.T) {
	a := ChecksumName("/var/log/auth.log")
	b := ChecksumName("/var/log/auth.log")
	if a != b {
		t.Errorf("ChecksumName not stable: %q != %q", a, b)
	}
	if len(a) != 40 {
		t.Errorf("ChecksumName length = %d, want 40", len(a))
	}

	c := ChecksumName("/var/log/auth.log.1")
	if a == c {
		t.Error("ChecksumName collided for distinct paths")
	}
}

func TestStoreDedupesByOriginalPath(t *testing.T) {
	dir := t.TempDir()
	storedDir := filepath.Join(dir, "stored_files")
	if err := os.Mkdir(storedDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := filepath.Join(dir, "evidence.txt")
	writeTestFile(t, src, "evidence contents")

	lootDir := filepath.Join(dir, "loot_files")
	if err := os.Mkdir(lootDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p := New(storedDir, lootDir, filepath.Join(dir, "metadata.csv"), 0)

	meta1, stored1, err := p.Store(src, StoreOptions{})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !stored1 {
		t.Fatal("first Store() call reported not-stored")
	}

	meta2, stored2, err := p.Store(src, StoreOptions{})
	if err != nil {
		t.Fatalf("second Store() error = %v", err)
	}
	if stored2 {
		t.Error("second Store() call for same path reported stored again")
	}
	if meta1.StoredAs != meta2.StoredAs {
		t.Error("dedup returned different stored name on second call")
	}

	if p.StoredCount() != 1 {
		t.Errorf("StoredCount() = %d, want 1", p.StoredCount())
	}

	destPath := filepath.Join(storedDir, meta1.StoredAs)
	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(got) != "evidence contents" {
		t.Errorf("stored content = %q, want %q", got, "evidence contents")
	}
}

func TestStoreSkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	storedDir := filepath.Join(dir, "stored_files")
	if err := os.Mkdir(storedDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := filepath.Join(dir, "big.bin")
	writeTestFile(t, src, strings.Repeat("x", 100))

	p := New(storedDir, filepath.Join(dir, "loot_files"), filepath.Join(dir, "metadata.csv"), 10)
	_, stored, err := p.Store(src, StoreOptions{})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if stored {
		t.Error("Store() stored a file over the size limit")
	}
}

func TestFinishWritesMetadataHeader(t *testing.T) {
	dir := t.TempDir()
	storedDir := filepath.Join(dir, "stored_files")
	if err := os.Mkdir(storedDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	metaPath := filepath.Join(dir, "metadata.csv")
	p := New(storedDir, filepath.Join(dir, "loot_files"), metaPath, 0)

	src := filepath.Join(dir, "f.txt")
	writeTestFile(t, src, "data")
	if _, _, err := p.Store(src, StoreOptions{}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := p.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if !strings.HasPrefix(string(raw), "original_path,stored_as,sha1_checksum,comment,") {
		t.Errorf("metadata file missing expected header: %q", raw)
	}
	if !strings.Contains(string(raw), src) {
		t.Errorf("metadata file missing stored path %q", src)
	}
}

func TestExpandPatternsDedupesAcrossLines(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.log"), "a")
	writeTestFile(t, filepath.Join(dir, "b.log"), "b")

	pattern := filepath.Join(dir, "*.log")
	patterns := pattern + "\n" + pattern

	files, err := ExpandPatterns(patterns)
	if err != nil {
		t.Fatalf("ExpandPatterns() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("ExpandPatterns() returned %d files, want 2: %v", len(files), files)
	}
}
