// Command collector runs a YAML-defined evidence collection workflow
// end to end: it validates the workflow, resolves host variables,
// executes every step into a fresh report directory, archives and
// optionally encrypts the result.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/duskline/irkit/internal/crypto"
	"github.com/duskline/irkit/internal/hostconfig"
	"github.com/duskline/irkit/internal/obslog"
	"github.com/duskline/irkit/internal/report"
	"github.com/duskline/irkit/internal/sink"
	"github.com/duskline/irkit/internal/sysvars"
	"github.com/duskline/irkit/internal/workflow"
)

var (
	workflowPath   string
	configPath     string
	lootDir        string
	customFilesDir string
	dryRun         bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Run a forensic evidence collection workflow",
		RunE:  runCollect,
	}

	cmd.Flags().StringVarP(&workflowPath, "workflow", "w", "workflow.yaml", "path to the workflow definition")
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the host configuration file")
	cmd.Flags().StringVarP(&lootDir, "loot-dir", "l", "./loot", "directory to write reports under")
	cmd.Flags().StringVarP(&customFilesDir, "custom-files-dir", "b", "", "directory bundled binaries are resolved against")
	// runCollect stops right after validation when this is set, before
	// launch conditions are checked or any step runs
	cmd.Flags().BoolVar(&dryRun, "validate-only", false, "validate the workflow and exit without running it")

	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	def, err := workflow.Load(workflowPath)
	if err != nil {
		return err
	}

	result := workflow.Validate(def)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if !result.OK() {
		for _, f := range result.Fatal {
			fmt.Fprintf(os.Stderr, "error: %s\n", f)
		}
		return fmt.Errorf("collector: workflow failed validation")
	}
	def = result.Repaired

	if dryRun {
		fmt.Println("workflow is valid")
		return nil
	}

	if err := def.LaunchConditions.Check(context.Background()); err != nil {
		return fmt.Errorf("collector: launch conditions not met: %w", err)
	}

	hostCfg, err := hostconfig.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	vars, err := sysvars.Detect(lootDir, customFilesDir)
	if err != nil {
		return err
	}

	createdAt := time.Now().UTC()
	if loc, err := time.LoadLocation(hostCfg.Time.TimeZone); err == nil {
		createdAt = createdAt.In(loc)
	}

	rep, err := report.New(lootDir, vars.DeviceName, def.Reporting.Name, createdAt)
	if err != nil {
		return err
	}
	rep.ArchiveEnabled = def.Archive.Enabled
	defer rep.Close()

	logger, closeLog, err := obslog.New(filepath.Join(rep.RootDir, "collector.log"), rep.RunID.String())
	if err != nil {
		return err
	}
	defer closeLog()

	vars.LootDirectory = rep.RootDir
	vars.CustomFilesDirectory = customFilesDir

	proc := sink.New(rep.StoredFilesDir(), rep.LootFilesDir(), rep.MetadataPath(), 0)

	rc := workflow.RunContext{
		Vars:           vars.AsMap(),
		Sink:           proc,
		CustomFilesDir: customFilesDir,
		ScanWorkers:    def.Scan.NumThreads,
		Logger:         logger,
	}

	logger.Info("collection started", "workflow", workflowPath, "report_dir", rep.RootDir)

	outcomes, err := workflow.Run(context.Background(), def, rc)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Result.Success {
			failed++
		}
	}
	logger.Info("collection finished", "steps", len(outcomes), "failed", failed)

	if err := proc.Finish(); err != nil {
		return err
	}

	if def.Archive.Enabled {
		policy := sink.DefaultCompressionPolicy
		if def.Archive.CompressionDisabled {
			policy = func(string, int64) uint16 { return 0 } // zip.Store
		}
		if err := sink.WriteArchive(rep.ArchivePath(), rep.StoredFilesDir(), rep.LootFilesDir(), rep.ActionOutputDir(), rep.MetadataPath(), policy); err != nil {
			return err
		}

		if def.Encryption.Enabled {
			pub, err := crypto.LoadPublicKey(def.Encryption.PublicKeyPath)
			if err != nil {
				return err
			}
			alg := def.Encryption.Algorithm
			if alg == "" {
				alg = crypto.AlgorithmAES128GCM
			}
			if err := crypto.EncryptArchive(rep.ArchivePath(), rep.EncryptionSidecarPath(), pub, alg); err != nil {
				return err
			}
		}
	}

	var archiveSize int64
	if info, statErr := os.Stat(rep.ArchivePath()); statErr == nil {
		archiveSize = info.Size()
	}

	fmt.Printf("collection complete: %d steps, %d failed, %d files stored (%s), report at %s\n",
		len(outcomes), failed, proc.StoredCount(), humanize.Bytes(uint64(archiveSize)), rep.RootDir)
	return nil
}
