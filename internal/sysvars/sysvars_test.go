package sysvars

import "testing"

func TestAsMapContainsAllSubstitutionKeys(t *testing.T) {
	v := SystemVariables{
		OS:                   "linux",
		Arch:                 "amd64",
		DeviceName:           "workstation-1",
		BasePath:             "/opt/collector",
		UserHome:             "/home/forensics",
		User:                 "forensics",
		LootDirectory:        "/opt/collector/loot",
		CustomFilesDirectory: "/opt/collector/custom",
	}

	m := v.AsMap()
	want := map[string]string{
		"BASE_PATH":        "/opt/collector",
		"DEVICE_NAME":      "workstation-1",
		"USER_HOME":        "/home/forensics",
		"USER_NAME":        "forensics",
		"LOOT_DIR":         "/opt/collector/loot",
		"CUSTOM_FILES_DIR": "/opt/collector/custom",
		"OS":               "linux",
		"ARCH":             "amd64",
	}

	for k, wantVal := range want {
		if got := m[k]; got != wantVal {
			t.Errorf("AsMap()[%q] = %q, want %q", k, got, wantVal)
		}
	}
}

func TestSubstituteReplacesKnownKeys(t *testing.T) {
	vars := map[string]string{
		"BASE_PATH": "/opt/collector",
		"OS":        "linux",
	}

	got := Substitute("${BASE_PATH}/bin/${OS}/tool", vars)
	want := "/opt/collector/bin/linux/tool"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

func TestSubstituteLeavesUnknownKeysAlone(t *testing.T) {
	got := Substitute("${NOT_A_KEY}/rest", map[string]string{"OS": "linux"})
	if got != "${NOT_A_KEY}/rest" {
		t.Errorf("Substitute() = %q, want unchanged", got)
	}
}

func TestDetectBasePathReturnsNonEmptyDir(t *testing.T) {
	got, err := DetectBasePath()
	if err != nil {
		t.Fatalf("DetectBasePath() error = %v", err)
	}
	if got == "" {
		t.Error("DetectBasePath() returned empty string")
	}
}
