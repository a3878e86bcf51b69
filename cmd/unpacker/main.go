// Command unpacker reverses a collection run: given the report
// directory collector produced, it decrypts the evidence archive (if
// encrypted), extracts it, and optionally restores every file to its
// original path, verifying checksums along the way. It auto-detects
// whether the report was archived or left as a loose stored_files tree,
// so the same invocation works against either output.
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/duskline/irkit/internal/crypto"
	"github.com/duskline/irkit/internal/unpack"
)

const (
	archiveFileName   = "evidence.zip"
	sidecarFileName   = "encryption.json"
	storedFilesSubdir = "stored_files"
	metadataFileName  = "metadata.csv"
)

var (
	reportDir      string
	privateKeyPath string
	outputPath     string
	doRestore      bool
	doVerify       bool
	verbose        bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpacker",
		Short: "Decrypt, extract, and restore a collection run's evidence",
		RunE:  runUnpack,
	}

	cmd.Flags().StringVarP(&reportDir, "input", "i", "", "path to the report directory produced by collector (required)")
	cmd.Flags().StringVarP(&privateKeyPath, "private", "k", "", "examiner's RSA private key, required if the archive is encrypted")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "directory to restore files under (archived reports only)")
	cmd.Flags().BoolVar(&doRestore, "restore", false, "restore files to their original paths")
	cmd.Flags().BoolVar(&doVerify, "verify", true, "verify restored files' checksums against the metadata ledger")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each file as it's processed")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runUnpack(cmd *cobra.Command, args []string) error {
	archivePath := filepath.Join(reportDir, archiveFileName)
	storedFilesDir := filepath.Join(reportDir, storedFilesSubdir)
	metadataPath := filepath.Join(reportDir, metadataFileName)

	archived := fileExists(archivePath)
	storageMode := !archived && dirExists(storedFilesDir)
	if !archived && !storageMode {
		return fmt.Errorf("unpacker: %s has neither %s nor %s, not a report directory", reportDir, archiveFileName, storedFilesSubdir)
	}

	if outputPath != "" && !archived {
		fmt.Fprintf(os.Stderr, "warning: --output is ignored for a non-archived report, restoring in place under %s\n", reportDir)
		outputPath = ""
	}
	restoreRoot := outputPath
	if restoreRoot == "" {
		restoreRoot = reportDir
	}

	workDir := storedFilesDir
	if archived {
		dir, err := os.MkdirTemp("", "unpacker-")
		if err != nil {
			return fmt.Errorf("unpacker: create scratch directory: %w", err)
		}
		defer os.RemoveAll(dir)

		if err := decryptIfNeeded(archivePath, reportDir); err != nil {
			return err
		}
		if _, err := unpack.ExtractArchive(archivePath, dir); err != nil {
			return fmt.Errorf("unpacker: extract archive: %w", err)
		}
		workDir = filepath.Join(dir, storedFilesSubdir)
		if extracted := filepath.Join(dir, metadataFileName); fileExists(extracted) {
			metadataPath = extracted
		}
	}

	if !doRestore {
		fmt.Printf("report %s is valid, pass --restore to extract evidence\n", reportDir)
		return nil
	}

	if err := os.MkdirAll(restoreRoot, 0o750); err != nil {
		return fmt.Errorf("unpacker: create output directory: %w", err)
	}

	rows, err := loadMetadata(metadataPath)
	if err != nil {
		return err
	}

	var restored, skipped, verifyFailed int
	for _, row := range rows {
		storedPath := filepath.Join(workDir, row.storedAs)
		if _, err := os.Stat(storedPath); err != nil {
			continue
		}

		dest, wasSkipped, err := unpack.RestoreFile(storedPath, row.originalPath, restoreRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unpacker: %v\n", err)
			continue
		}
		if wasSkipped {
			skipped++
			if verbose {
				fmt.Printf("skip (already exists): %s\n", dest)
			}
			continue
		}
		restored++
		if verbose {
			fmt.Printf("restored: %s\n", dest)
		}

		if doVerify && row.sha1 != "" {
			ok, err := unpack.VerifyChecksum(dest, row.sha1)
			if err != nil {
				fmt.Fprintf(os.Stderr, "unpacker: verify %s: %v\n", dest, err)
				continue
			}
			if !ok {
				verifyFailed++
				fmt.Fprintf(os.Stderr, "unpacker: checksum mismatch for %s\n", dest)
			}
		}
	}

	fmt.Printf("restored %d files, skipped %d existing, %d checksum mismatches\n", restored, skipped, verifyFailed)
	return nil
}

func decryptIfNeeded(archivePath, reportDir string) error {
	decrypted, err := unpack.IsAlreadyDecrypted(archivePath)
	if err != nil {
		return fmt.Errorf("unpacker: check archive header: %w", err)
	}
	if decrypted {
		return nil
	}

	if privateKeyPath == "" {
		return fmt.Errorf("unpacker: archive appears encrypted but --private was not given")
	}

	priv, err := crypto.LoadPrivateKey(privateKeyPath)
	if err != nil {
		return err
	}

	sidecarPath := filepath.Join(reportDir, sidecarFileName)
	return crypto.DecryptArchive(archivePath, sidecarPath, priv)
}

type metadataRow struct {
	originalPath string
	storedAs     string
	sha1         string
}

func loadMetadata(path string) ([]metadataRow, error) {
	if !fileExists(path) {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unpacker: open metadata: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unpacker: parse metadata: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// original_path,stored_as,sha1_checksum,comment,modified_at,accessed_at,created_at,size_bytes
	rows := make([]metadataRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 3 {
			continue
		}
		rows = append(rows, metadataRow{originalPath: rec[0], storedAs: rec[1], sha1: rec[2]})
	}
	return rows, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
