package workflow

import "testing"

func containsSubstring(list []string, substr string) bool {
	for _, s := range list {
		if len(s) >= len(substr) {
			for i := 0; i+len(substr) <= len(s); i++ {
				if s[i:i+len(substr)] == substr {
					return true
				}
			}
		}
	}
	return false
}

func TestValidateRepairsArchiveWhenEncryptionEnabled(t *testing.T) {
	def := Definition{
		Properties: PropertiesConfig{Title: "t", Version: "1"},
		Steps:      []Step{{Name: "collect", Type: ActionStore, Store: &StoreConfig{Patterns: "x"}}},
		Archive:    ArchiveConfig{Enabled: false},
		Encryption: EncryptionConfig{Enabled: true, PublicKeyPath: "/keys/pub.pem"},
	}

	res := Validate(def)
	if !res.Repaired.Archive.Enabled {
		t.Error("Validate() should have re-enabled archive")
	}
	if !containsSubstring(res.Warnings, "archive") {
		t.Errorf("expected a warning about archive repair, got %v", res.Warnings)
	}
	if !res.OK() {
		t.Errorf("should not be fatal, got %v", res.Fatal)
	}
}

func TestValidateFailsClosedWithoutPublicKey(t *testing.T) {
	def := Definition{
		Archive:    ArchiveConfig{Enabled: true},
		Encryption: EncryptionConfig{Enabled: true},
	}

	res := Validate(def)
	if res.OK() {
		t.Error("Validate() should report fatal error for missing public key")
	}
}

func TestValidateCompressionDisabledAsymmetryChecksEncryptionNotArchive(t *testing.T) {
	def := Definition{
		Archive: ArchiveConfig{Enabled: true, CompressionDisabled: false},
		Encryption: EncryptionConfig{Enabled: false},
	}

	res := Validate(def)
	if !containsSubstring(res.Warnings, "compression") {
		t.Errorf("expected a compression warning even though archive is enabled (the asymmetry under test), got %v", res.Warnings)
	}
}

func TestValidateCompressionDisabledNoWarningWhenEncrypted(t *testing.T) {
	def := Definition{
		Archive:    ArchiveConfig{Enabled: true, CompressionDisabled: true},
		Encryption: EncryptionConfig{Enabled: true, PublicKeyPath: "/keys/pub.pem"},
	}

	res := Validate(def)
	if containsSubstring(res.Warnings, "compression") {
		t.Errorf("should not warn about compression when encryption is enabled, got %v", res.Warnings)
	}
}

func TestValidateDisablesParallelForNonSeparateWindowTerminal(t *testing.T) {
	def := Definition{
		Steps: []Step{
			{
				Name:     "interactive",
				Type:     ActionTerminal,
				Terminal: &TerminalConfig{Command: "bash", SeparateWindow: false, Wait: true},
				Parallel: true,
			},
		},
	}

	res := Validate(def)
	if res.Repaired.Steps[0].Parallel {
		t.Error("Validate() should have disabled parallel for a non-separate-window terminal step")
	}
	if !containsSubstring(res.Warnings, "terminal") {
		t.Errorf("expected a terminal/parallel warning, got %v", res.Warnings)
	}
}

func TestValidateCatchesDuplicateStepNames(t *testing.T) {
	def := Definition{
		Steps: []Step{
			{Name: "collect-logs", Type: ActionStore, Store: &StoreConfig{Patterns: "/var/log/*.log"}},
			{Name: "collect-logs", Type: ActionStore, Store: &StoreConfig{Patterns: "/var/log/*.log"}},
		},
	}

	res := Validate(def)
	if res.OK() {
		t.Error("Validate() should reject duplicate step names")
	}
}

func TestValidateCatchesUnknownGotoTarget(t *testing.T) {
	def := Definition{
		Steps: []Step{
			{Name: "a", Type: ActionStore, Store: &StoreConfig{Patterns: "x"}, OnError: OnError{Action: OnErrorGoto, Goto: "does-not-exist"}},
		},
	}

	res := Validate(def)
	if res.OK() {
		t.Error("Validate() should reject an unknown goto target")
	}
}

func TestValidateAcceptsValidGotoCycle(t *testing.T) {
	def := Definition{
		Steps: []Step{
			{Name: "a", Type: ActionStore, Store: &StoreConfig{Patterns: "x"}, OnError: OnError{Action: OnErrorGoto, Goto: "b"}},
			{Name: "b", Type: ActionStore, Store: &StoreConfig{Patterns: "x"}, OnError: OnError{Action: OnErrorGoto, Goto: "a"}},
		},
	}

	// A goto cycle between two valid step names is not itself an error:
	// the engine does not detect infinite loops, only dangling targets.
	res := Validate(def)
	if !res.OK() {
		t.Errorf("Validate() should accept a cycle between existing steps, got %v", res.Fatal)
	}
}
