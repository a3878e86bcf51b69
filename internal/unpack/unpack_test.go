package unpack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestPathToStorageLocationStripsExtendedPrefixAndDriveColon(t *testing.T) {
	got := PathToStorageLocation(`\\?\C:\Users\forensics\Documents\evidence.txt`)
	want := filepath.Join("C", "Users", "forensics", "Documents", "evidence.txt")
	if got != want {
		t.Errorf("PathToStorageLocation() = %q, want %q", got, want)
	}
}

func TestPathToStorageLocationHandlesUnixPaths(t *testing.T) {
	got := PathToStorageLocation("/var/log/auth.log")
	want := filepath.Join("var", "log", "auth.log")
	if got != want {
		t.Errorf("PathToStorageLocation() = %q, want %q", got, want)
	}
}

func TestIsAlreadyDecryptedDetectsZipMagic(t *testing.T) {
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "archive.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("entry.txt")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte("data")); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	f.Close()

	decrypted, err := IsAlreadyDecrypted(zipPath)
	if err != nil {
		t.Fatalf("IsAlreadyDecrypted() error = %v", err)
	}
	if !decrypted {
		t.Error("IsAlreadyDecrypted() = false for a real zip archive")
	}

	encPath := filepath.Join(dir, "encrypted.bin")
	if err := os.WriteFile(encPath, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, 0o640); err != nil {
		t.Fatalf("write encrypted stand-in: %v", err)
	}
	decrypted, err = IsAlreadyDecrypted(encPath)
	if err != nil {
		t.Fatalf("IsAlreadyDecrypted() error = %v", err)
	}
	if decrypted {
		t.Error("IsAlreadyDecrypted() = true for non-zip bytes")
	}
}

func TestRestoreFileRefusesToEscapeOutputRoot(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "output")
	if err := os.MkdirAll(filepath.Join(outputPath, "stored_files"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	storedPath := filepath.Join(dir, "stored.bin")
	if err := os.WriteFile(storedPath, []byte("evidence"), 0o640); err != nil {
		t.Fatalf("write stored file: %v", err)
	}

	_, _, err := RestoreFile(storedPath, "../../../etc/passwd", outputPath)
	if err == nil {
		t.Error("RestoreFile() should reject a path that escapes the output root")
	}
}

func TestRestoreFileSkipsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "output")
	if err := os.MkdirAll(filepath.Join(outputPath, "stored_files"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	storedPath := filepath.Join(dir, "stored.bin")
	if err := os.WriteFile(storedPath, []byte("evidence"), 0o640); err != nil {
		t.Fatalf("write stored file: %v", err)
	}

	originalPath := "/var/log/auth.log"

	_, skipped, err := RestoreFile(storedPath, originalPath, outputPath)
	if err != nil {
		t.Fatalf("first RestoreFile() error = %v", err)
	}
	if skipped {
		t.Error("first RestoreFile() should not have been skipped")
	}

	_, skipped, err = RestoreFile(storedPath, originalPath, outputPath)
	if err != nil {
		t.Fatalf("second RestoreFile() error = %v", err)
	}
	if !skipped {
		t.Error("second RestoreFile() should have been skipped, destination exists")
	}
}

func TestExtractArchiveWritesEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("nested/entry.txt")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	f.Close()

	destDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	written, err := ExtractArchive(archivePath, destDir)
	if err != nil {
		t.Fatalf("ExtractArchive() error = %v", err)
	}
	if len(written) != 1 || written[0] != "nested/entry.txt" {
		t.Errorf("ExtractArchive() wrote %v, want [nested/entry.txt]", written)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "nested", "entry.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("extracted content = %q, want %q", got, "payload")
	}
}
