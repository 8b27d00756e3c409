package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	if !strings.Contains(info, "interview-agent version") {
		t.Errorf("version info missing binary name: %q", info)
	}
	if !strings.Contains(info, Version) {
		t.Errorf("version info missing version %q: %q", Version, info)
	}
	if !strings.Contains(info, "go: go") {
		t.Errorf("version info missing go runtime version: %q", info)
	}
}
