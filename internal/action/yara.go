package action

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hillu/go-yara/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/duskline/irkit/internal/sink"
)

// matchComment is attached to every file forwarded to the sink because
// it matched a YARA rule: scanning a file for content necessarily reads
// it, so its access time no longer reflects what it was at collection
// time.
const matchComment = "Matched by YARA: Access time may have changed"

// maxRulesPerBatch bounds how many rule files go into a single compiler
// invocation. Partitioning rule paths into batches means one malformed
// rule file only costs the scan the matches from its own batch, not
// every rule the step configured.
const maxRulesPerBatch = 500

const defaultScanTimeout = 30 * time.Second

// FileScanResult is one row of a YARA scan's output: either a rule match
// or a per-file scan error, recorded so a single unreadable file doesn't
// abort the whole batch.
type FileScanResult struct {
	OriginalPath string
	Identifier   string
	Namespace    string
	Error        string
}

// YaraParams configures a YARA scanning step.
type YaraParams struct {
	// RulePaths may be relative; relative entries are resolved against
	// CustomFilesDir.
	RulePaths      []string
	CustomFilesDir string
	Patterns       string
	StoreOnMatch   bool
	Sink           *sink.Processor
	ResultsCSV     string
	NumWorkers     int
	ScanTimeout    time.Duration
}

func (p YaraParams) resolvedRulePaths() []string {
	out := make([]string, len(p.RulePaths))
	for i, path := range p.RulePaths {
		if !filepath.IsAbs(path) && p.CustomFilesDir != "" {
			path = filepath.Join(p.CustomFilesDir, path)
		}
		out[i] = path
	}
	return out
}

// compileRules partitions rulePaths into batches of at most
// maxRulesPerBatch and compiles each batch independently. A batch that
// fails to compile is skipped (with its error reported to the caller)
// rather than failing every other batch's rules along with it.
func compileRules(rulePaths []string) ([]*yara.Rules, []error) {
	var (
		compiled []*yara.Rules
		errs     []error
	)

	for start := 0; start < len(rulePaths); start += maxRulesPerBatch {
		end := start + maxRulesPerBatch
		if end > len(rulePaths) {
			end = len(rulePaths)
		}
		batch := rulePaths[start:end]

		rules, err := compileBatch(batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("yara: batch %d-%d: %w", start, end, err))
			continue
		}
		compiled = append(compiled, rules)
	}
	return compiled, errs
}

func compileBatch(rulePaths []string) (*yara.Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("init compiler: %w", err)
	}

	for _, path := range rulePaths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open rule file %s: %w", path, err)
		}
		err = compiler.AddFile(f, "")
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("compile rule file %s: %w", path, err)
		}
	}

	rules, err := compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("finalize rules: %w", err)
	}
	return rules, nil
}

func scanFile(rulesets []*yara.Rules, path string, timeout time.Duration) []FileScanResult {
	var results []FileScanResult
	for _, rules := range rulesets {
		var matches yara.MatchRules
		if err := rules.ScanFile(path, 0, timeout, &matches); err != nil {
			results = append(results, FileScanResult{OriginalPath: path, Error: err.Error()})
			continue
		}
		for _, m := range matches {
			results = append(results, FileScanResult{
				OriginalPath: path,
				Identifier:   m.Rule,
				Namespace:    m.Namespace,
			})
		}
	}
	return results
}

// RunYara compiles RulePaths, scans every file matching Patterns against
// them with a bounded worker pool, writes a CSV row per match or
// per-file error to ResultsCSV, and, when StoreOnMatch is set, forwards
// every file with at least one match into Sink with a comment noting its
// access time was disturbed by the scan itself.
func RunYara(_ context.Context, p YaraParams, opts Options) Result {
	rulesets, compileErrs := compileRules(p.resolvedRulePaths())
	if len(rulesets) == 0 {
		msg := "yara: no rule batch compiled successfully"
		if len(compileErrs) > 0 {
			msg = compileErrs[0].Error()
		}
		return errorResult(opts, -1, msg)
	}

	timeout := p.ScanTimeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	files, err := sink.ExpandPatterns(p.Patterns)
	if err != nil {
		return errorResult(opts, -1, err.Error())
	}

	csvFile, err := os.Create(p.ResultsCSV)
	if err != nil {
		return errorResult(opts, -1, err.Error())
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()
	_ = w.Write([]string{"original_path", "identifier", "namespace", "error"})
	for _, e := range compileErrs {
		_ = w.Write([]string{"", "", "", e.Error()})
	}

	var (
		mu            sync.Mutex
		wg            sync.WaitGroup
		hitCount      int64
		errCount      int64
		alreadyStored sync.Map
	)

	workers := p.NumWorkers
	if workers <= 0 {
		workers = 4
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return errorResult(opts, -1, "yara: init worker pool: "+err.Error())
	}
	defer pool.Release()

	for _, path := range files {
		path := path
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			results := scanFile(rulesets, path, timeout)
			if len(results) == 0 {
				return
			}

			matched := false
			for _, r := range results {
				if r.Error != "" {
					atomic.AddInt64(&errCount, 1)
				} else {
					atomic.AddInt64(&hitCount, 1)
					matched = true
				}

				mu.Lock()
				_ = w.Write([]string{r.OriginalPath, r.Identifier, r.Namespace, r.Error})
				mu.Unlock()
			}

			if matched && p.StoreOnMatch && p.Sink != nil {
				if _, loaded := alreadyStored.LoadOrStore(path, true); !loaded {
					_, _, _ = p.Sink.Store(path, sink.StoreOptions{Comment: matchComment})
				}
			}
		})
		if submitErr != nil {
			wg.Done()
		}
	}
	wg.Wait()

	w.Flush()
	if err := w.Error(); err != nil {
		return errorResult(opts, -1, "yara: write results csv: "+err.Error())
	}

	return successResult(opts, 0)
}
