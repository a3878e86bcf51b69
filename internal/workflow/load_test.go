package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesFullWorkflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	content := `
reporting:
  name: incident-42
archive:
  enabled: true
encryption:
  enabled: true
  public_key_path: /keys/examiner.pem
  algorithm: aes-128-gcm
scan:
  num_threads: 8
steps:
  - name: collect-logs
    type: store
    store:
      patterns: "/var/log/*.log"
  - name: scan-malware
    type: yara
    yara:
      rule_paths:
        - /rules/malware.yar
      patterns: "/home/**/*.exe"
      store_on_match: true
    on_error:
      action: continue
`
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write workflow file: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if def.Reporting.Name != "incident-42" {
		t.Errorf("Reporting.Name = %q, want %q", def.Reporting.Name, "incident-42")
	}
	if !def.Archive.Enabled {
		t.Error("Archive.Enabled = false, want true")
	}
	if def.Encryption.PublicKeyPath != "/keys/examiner.pem" {
		t.Errorf("Encryption.PublicKeyPath = %q", def.Encryption.PublicKeyPath)
	}
	if len(def.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(def.Steps))
	}
	if def.Steps[1].Yara == nil || !def.Steps[1].Yara.StoreOnMatch {
		t.Error("second step should have yara.store_on_match = true")
	}
}
