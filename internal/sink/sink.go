// Package sink implements the deduplicating evidence store every action
// runner funnels collected files through: files are copied into the
// report's stored_files (or loot_files) directory under a
// content-addressed name, their SHA-1 digest and MAC times recorded to a
// CSV ledger, and the whole tree (or, when archiving is streamed, each
// file as it's stored) zipped into a single archive at the end of a run.
package sink

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storedFilesArchivePrefix and lootFilesArchivePrefix name the top-level
// directories an archived entry lands under, mirroring the report's own
// stored_files/loot_files layout on disk.
const (
	storedFilesArchivePrefix = "stored_files"
	lootFilesArchivePrefix   = "loot_files"
)

// Metadata is one row of the evidence ledger: the original path a file
// was collected from, its content checksum, an optional free-text note,
// and its modification/access/creation times as seen at collection
// time. Loot files (produced by an action rather than pre-existing on
// the host) carry a zero MAC-time triplet, since there is nothing
// meaningful to record about a file's access history before the run
// that created it.
type Metadata struct {
	OriginalPath string
	StoredAs     string
	SHA1Checksum string
	Comment      string
	ModifiedAt   time.Time
	AccessedAt   time.Time
	CreatedAt    time.Time
	SizeBytes    int64
}

// StoreOptions tailors an individual Store call.
type StoreOptions struct {
	// Comment is recorded alongside the file in the metadata ledger,
	// e.g. noting that a YARA scan disturbed the file's access time.
	Comment string
	// Loot marks originalPath as an action's own output rather than
	// pre-existing evidence: it lands under loot_files instead of
	// stored_files and skips MAC-time collection.
	Loot bool
	// MaxSizeOverride, when non-zero, replaces the processor's own size
	// limit for this call only (a step's own max_size_bytes).
	MaxSizeOverride int64
}

// Processor stores collected files under a report's stored_files and
// loot_files directories, deduplicating by original path, and maintains
// the CSV metadata ledger alongside them.
type Processor struct {
	storedFilesDir string
	lootFilesDir   string
	metadataPath   string

	archive *ArchiveWriter // non-nil once streaming-into-archive is enabled

	mu      sync.Mutex
	stored  map[string]Metadata // original path -> metadata, for dedup
	maxSize int64               // 0 means unlimited
}

// New constructs a Processor rooted at storedFilesDir/lootFilesDir,
// writing its ledger to metadataPath. maxSize, when non-zero, causes
// Store to skip files larger than the limit unless overridden per call.
func New(storedFilesDir, lootFilesDir, metadataPath string, maxSize int64) *Processor {
	return &Processor{
		storedFilesDir: storedFilesDir,
		lootFilesDir:   lootFilesDir,
		metadataPath:   metadataPath,
		stored:         make(map[string]Metadata),
		maxSize:        maxSize,
	}
}

// StreamToArchive switches Store into archive-streaming mode: every
// subsequently stored file is written directly into aw's ZIP entries
// instead of being copied to disk first. Call it before any Store calls
// for the run; it has no effect on files already stored.
func (p *Processor) StreamToArchive(aw *ArchiveWriter) {
	p.mu.Lock()
	p.archive = aw
	p.mu.Unlock()
}

// ChecksumName returns the content-addressed filename a given original
// path is stored under: the SHA-1 digest of the path's raw bytes,
// hex-encoded and left-padded to 40 characters.
func ChecksumName(originalPath string) string {
	sum := sha1.Sum([]byte(originalPath))
	return fmt.Sprintf("%040s", hex.EncodeToString(sum[:]))
}

// Store copies originalPath into the processor's stored_files (or, if
// opts.Loot, loot_files) directory under its checksum name, hashing its
// content and recording its MAC times. It is a no-op if the path has
// already been stored in this run, or if it exceeds the size limit. It
// returns the metadata recorded for the path (the earlier call's
// metadata if it was already stored, the zero value if it exceeds the
// size limit) and whether this call actually stored the file.
func (p *Processor) Store(originalPath string, opts StoreOptions) (Metadata, bool, error) {
	p.mu.Lock()
	if existing, ok := p.stored[originalPath]; ok {
		p.mu.Unlock()
		return existing, false, nil
	}
	archive := p.archive
	p.mu.Unlock()

	info, err := os.Lstat(originalPath)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("sink: stat %s: %w", originalPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return Metadata{}, false, fmt.Errorf("sink: refusing to follow symlink %s", originalPath)
	}

	limit := p.maxSize
	if opts.MaxSizeOverride > 0 {
		limit = opts.MaxSizeOverride
	}
	if limit > 0 && info.Size() > limit {
		return Metadata{}, false, nil
	}

	storedName := ChecksumName(originalPath)

	src, err := os.Open(originalPath)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("sink: open %s: %w", originalPath, err)
	}
	defer src.Close()

	h := sha1.New()
	r := io.TeeReader(src, h)

	if archive != nil {
		prefix := storedFilesArchivePrefix
		if opts.Loot {
			prefix = lootFilesArchivePrefix
		}
		entryName := filepath.ToSlash(filepath.Join(prefix, storedName))
		if err := archive.WriteEntry(entryName, time.Now(), info.Size(), r); err != nil {
			return Metadata{}, false, fmt.Errorf("sink: stream %s into archive: %w", originalPath, err)
		}
	} else {
		destDir := p.storedFilesDir
		if opts.Loot {
			destDir = p.lootFilesDir
		}
		destPath := filepath.Join(destDir, storedName)
		if err := copyFromReader(r, destPath); err != nil {
			return Metadata{}, false, fmt.Errorf("sink: copy %s: %w", originalPath, err)
		}
	}

	meta := Metadata{
		OriginalPath: originalPath,
		StoredAs:     storedName,
		SHA1Checksum: hex.EncodeToString(h.Sum(nil)),
		Comment:      opts.Comment,
		SizeBytes:    info.Size(),
	}
	if !opts.Loot {
		mac := macTimes(info)
		meta.ModifiedAt = mac.modified
		meta.AccessedAt = mac.accessed
		meta.CreatedAt = mac.created
	}

	p.mu.Lock()
	p.stored[originalPath] = meta
	p.mu.Unlock()

	return meta, true, nil
}

// Finish writes the CSV metadata ledger for every file stored so far.
// Call it once, after all Store calls for a run have completed.
func (p *Processor) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Create(p.metadataPath)
	if err != nil {
		return fmt.Errorf("sink: create metadata file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"original_path", "stored_as", "sha1_checksum", "comment",
		"modified_at", "accessed_at", "created_at", "size_bytes",
	}); err != nil {
		return fmt.Errorf("sink: write metadata header: %w", err)
	}

	for _, meta := range p.stored {
		row := []string{
			meta.OriginalPath,
			meta.StoredAs,
			meta.SHA1Checksum,
			meta.Comment,
			meta.ModifiedAt.UTC().Format(time.RFC3339Nano),
			meta.AccessedAt.UTC().Format(time.RFC3339Nano),
			meta.CreatedAt.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%d", meta.SizeBytes),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("sink: write metadata row for %s: %w", meta.OriginalPath, err)
		}
	}

	w.Flush()
	return w.Error()
}

// StoredCount reports how many distinct files have been stored so far.
func (p *Processor) StoredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stored)
}

func copyFromReader(r io.Reader, dst string) error {
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
