package sink

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"
)

// zstdMethod is the compression method ID the ZIP format assigns to
// Zstandard (93, 0x5D); using it keeps parity with the original archive
// format so an unpacker that only knows
// Stored/Deflate still identifies an unsupported entry rather than
// silently mis-decoding it.
const zstdMethod = 93

func init() {
	zip.RegisterCompressor(zstdMethod, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
	zip.RegisterDecompressor(zstdMethod, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(errReader{err})
		}
		return zr.IOReadCloser()
	})
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// CompressionPolicy decides, per archive entry, whether to store it
// uncompressed or run it through zstd. Already-compressed evidence
// (images, existing archives, video) gains nothing from a second
// compression pass and just burns CPU, so the archive step is allowed to
// skip it.
type CompressionPolicy func(name string, size int64) uint16

// DefaultCompressionPolicy zstd-compresses everything under 64 MiB and
// stores larger files uncompressed, trading a bounded compression-time
// budget for coverage of the common case.
func DefaultCompressionPolicy(_ string, size int64) uint16 {
	const threshold = 64 << 20
	if size > threshold {
		return zip.Store
	}
	return zstdMethod
}

// ArchiveWriter wraps a single open ZIP file. It supports both streaming
// individual entries in as a run progresses (Processor.Store, once
// StreamToArchive has been called) and sweeping a directory tree of
// files written outside the sink (loot files, per-action output, the
// metadata ledger) once a run finishes. The zip.Writer it wraps is not
// safe for concurrent use, so every write goes through WriteEntry, which
// serializes callers behind a mutex.
type ArchiveWriter struct {
	f      *os.File
	zw     *zip.Writer
	policy CompressionPolicy
	mu     sync.Mutex
}

// OpenArchive creates a new ZIP file at path and returns a writer ready
// to accept entries, either streamed in during a run or swept in from
// disk afterward.
func OpenArchive(path string, policy CompressionPolicy) (*ArchiveWriter, error) {
	if policy == nil {
		policy = DefaultCompressionPolicy
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create archive: %w", err)
	}
	return &ArchiveWriter{f: f, zw: zip.NewWriter(f), policy: policy}, nil
}

// WriteEntry streams src into the archive under name, applying the
// compression policy for an entry of the given size.
func (a *ArchiveWriter) WriteEntry(name string, modTime time.Time, size int64, src io.Reader) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	hdr := &zip.FileHeader{Name: filepath.ToSlash(name), Modified: modTime}
	hdr.Method = a.policy(name, size)

	w, err := a.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("sink: create archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("sink: write archive entry %s: %w", name, err)
	}
	return nil
}

// AddFile streams the single file at path into the archive under name,
// used for files produced after the run (the metadata ledger).
func (a *ArchiveWriter) AddFile(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sink: stat %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer f.Close()
	return a.WriteEntry(name, info.ModTime(), info.Size(), f)
}

// SweepDir walks dir and streams every regular file under it into the
// archive, named by its path relative to dir's parent (so dir's own
// basename becomes the entries' common prefix). A missing dir is not an
// error: not every report produces loot files or action output.
func (a *ArchiveWriter) SweepDir(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filepath.Dir(dir), path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return a.WriteEntry(rel, info.ModTime(), info.Size(), f)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close finalizes the archive. Callers must call it exactly once, after
// every WriteEntry/AddFile/SweepDir call has completed.
func (a *ArchiveWriter) Close() error {
	if err := a.zw.Close(); err != nil {
		a.f.Close()
		return fmt.Errorf("sink: finalize archive: %w", err)
	}
	return a.f.Close()
}

// WriteArchive builds a complete report archive in one call: every
// regular file under storedFilesDir, lootFilesDir, and actionOutputDir
// (each walked recursively), and the metadata ledger at
// metadataPath. It is the non-streaming counterpart to
// Processor.StreamToArchive — used when a run didn't stream its stored
// files in as it went, so everything has to be swept from disk at the
// end instead.
func WriteArchive(archivePath, storedFilesDir, lootFilesDir, actionOutputDir, metadataPath string, policy CompressionPolicy) error {
	aw, err := OpenArchive(archivePath, policy)
	if err != nil {
		return err
	}

	entryCount := 0
	for _, dir := range []string{storedFilesDir, lootFilesDir, actionOutputDir} {
		_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				entryCount++
			}
			return nil
		})
	}

	bar := progressbar.NewOptions(entryCount,
		progressbar.OptionSetDescription("archiving evidence"),
		progressbar.OptionSetWriter(os.Stderr),
	)
	barAw := &barredWriter{ArchiveWriter: aw, bar: bar}

	if err := barAw.SweepDir(storedFilesDir); err != nil {
		aw.Close()
		return fmt.Errorf("sink: sweep stored files: %w", err)
	}
	if err := barAw.SweepDir(lootFilesDir); err != nil {
		aw.Close()
		return fmt.Errorf("sink: sweep loot files: %w", err)
	}
	if err := barAw.SweepDir(actionOutputDir); err != nil {
		aw.Close()
		return fmt.Errorf("sink: sweep action output: %w", err)
	}

	if _, err := os.Stat(metadataPath); err == nil {
		if err := aw.AddFile(filepath.Base(metadataPath), metadataPath); err != nil {
			aw.Close()
			return fmt.Errorf("sink: add metadata ledger: %w", err)
		}
	}

	return aw.Close()
}

// barredWriter decorates ArchiveWriter's directory sweep with a progress
// bar tick per file written.
type barredWriter struct {
	*ArchiveWriter
	bar *progressbar.ProgressBar
}

func (b *barredWriter) SweepDir(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		defer b.bar.Add(1)

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filepath.Dir(dir), path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return b.WriteEntry(rel, info.ModTime(), info.Size(), f)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
