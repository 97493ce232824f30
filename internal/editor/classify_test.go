package editor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsHelper(t *testing.T) {
	cases := []struct {
		name string
		p    Snapshot
		want bool
	}{
		{"type flag", Snapshot{Name: "antigravity", Cmdline: []string{"/opt/ag/antigravity", "--type=renderer"}}, true},
		{"helper name", Snapshot{Name: "Antigravity Helper (GPU)"}, true},
		{"plugin name", Snapshot{Name: "antigravity-plugin-host"}, true},
		{"crashpad path", Snapshot{Name: "chrome_crashpad", ExePath: "/opt/ag/crashpad_handler"}, true},
		{"language server", Snapshot{Name: "antigravity_language_server"}, true},
		{"node tooling", Snapshot{Name: "antigravity", Cmdline: []string{"node", "--max-old-space-size=4096", "server.js"}}, true},
		{"main process", Snapshot{Name: "antigravity", ExePath: "/usr/bin/antigravity", Cmdline: []string{"/usr/bin/antigravity"}}, false},
	}
	for _, tc := range cases {
		if got := isHelper(tc.p); got != tc.want {
			t.Errorf("%s: isHelper = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsMainCandidateDarwin(t *testing.T) {
	cases := []struct {
		name string
		p    Snapshot
		want bool
	}{
		{"bundle main", Snapshot{Name: "Electron", ExePath: "/Applications/Antigravity.app/Contents/MacOS/Electron"}, true},
		{"framework binary", Snapshot{Name: "Electron", ExePath: "/Applications/Antigravity.app/Contents/Frameworks/Electron Framework.framework/Electron"}, false},
		{"helper in bundle", Snapshot{Name: "Antigravity Helper", ExePath: "/Applications/Antigravity.app/Contents/MacOS/Antigravity Helper"}, false},
		{"other app", Snapshot{Name: "Safari", ExePath: "/Applications/Safari.app/Contents/MacOS/Safari"}, false},
	}
	for _, tc := range cases {
		if got := isMainCandidate(tc.p, "darwin"); got != tc.want {
			t.Errorf("%s: isMainCandidate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsMainCandidateWindows(t *testing.T) {
	cases := []struct {
		name string
		p    Snapshot
		want bool
	}{
		{"exact exe", Snapshot{Name: "antigravity.exe", ExePath: `C:\Program Files\Antigravity\antigravity.exe`}, true},
		{"renderer child", Snapshot{Name: "antigravity.exe", Cmdline: []string{"antigravity.exe", "--type=gpu-process"}}, false},
		{"other exe", Snapshot{Name: "code.exe"}, false},
	}
	for _, tc := range cases {
		if got := isMainCandidate(tc.p, "windows"); got != tc.want {
			t.Errorf("%s: isMainCandidate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsMainCandidateLinux(t *testing.T) {
	cases := []struct {
		name string
		p    Snapshot
		want bool
	}{
		{"exact name", Snapshot{Name: "antigravity", ExePath: "/usr/share/antigravity/antigravity"}, true},
		{"path match", Snapshot{Name: "electron", ExePath: "/opt/antigravity/electron"}, true},
		{"tools process", Snapshot{Name: "antigravity-tools", ExePath: "/usr/bin/antigravity-tools"}, false},
		{"helper", Snapshot{Name: "antigravity", Cmdline: []string{"antigravity", "--type=zygote"}}, false},
		{"unrelated", Snapshot{Name: "bash", ExePath: "/bin/bash"}, false},
	}
	for _, tc := range cases {
		if got := isMainCandidate(tc.p, "linux"); got != tc.want {
			t.Errorf("%s: isMainCandidate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchesConfiguredPath(t *testing.T) {
	cases := []struct {
		name       string
		p          Snapshot
		configured string
		goos       string
		want       bool
	}{
		{"exact", Snapshot{Name: "myeditor", ExePath: "/custom/editor"}, "/custom/editor", "linux", true},
		{"bundle prefix", Snapshot{Name: "Electron", ExePath: "/Applications/Antigravity.app/Contents/MacOS/Electron"}, "/Applications/Antigravity.app", "darwin", true},
		{"different bundle", Snapshot{Name: "Electron", ExePath: "/Applications/Other.app/Contents/MacOS/Electron"}, "/Applications/Antigravity.app", "darwin", false},
		{"helper never matches", Snapshot{Name: "Antigravity Helper", ExePath: "/Applications/Antigravity.app/Contents/MacOS/Helper"}, "/Applications/Antigravity.app", "darwin", false},
		{"no config", Snapshot{Name: "antigravity", ExePath: "/usr/bin/antigravity"}, "", "linux", false},
	}
	for _, tc := range cases {
		if got := matchesConfiguredPath(tc.p, tc.configured, tc.goos); got != tc.want {
			t.Errorf("%s: matchesConfiguredPath = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsEditorRelated(t *testing.T) {
	cases := []struct {
		name string
		p    Snapshot
		goos string
		want bool
	}{
		{"main", Snapshot{Name: "antigravity"}, "linux", true},
		{"helper counts", Snapshot{Name: "Antigravity Helper (Renderer)"}, "darwin", true},
		{"by path", Snapshot{Name: "electron", ExePath: "/opt/antigravity/electron"}, "linux", true},
		{"tools excluded", Snapshot{Name: "antigravity-tools"}, "linux", false},
		{"unrelated", Snapshot{Name: "firefox", ExePath: "/usr/lib/firefox/firefox"}, "linux", false},
	}
	for _, tc := range cases {
		if got := isEditorRelated(tc.p, tc.goos); got != tc.want {
			t.Errorf("%s: isEditorRelated = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseUserDataDir(t *testing.T) {
	exists := func(path string) bool { return path == "/data/exists" }

	if dir, ok := parseUserDataDir([]string{"--user-data-dir", "/data/anything"}, exists); !ok || dir != "/data/anything" {
		t.Errorf("separate form = %q/%v", dir, ok)
	}
	if dir, ok := parseUserDataDir([]string{"--user-data-dir=/data/exists"}, exists); !ok || dir != "/data/exists" {
		t.Errorf("key=value form = %q/%v", dir, ok)
	}
	// The key=value form requires the path to exist.
	if _, ok := parseUserDataDir([]string{"--user-data-dir=/data/missing"}, exists); ok {
		t.Error("missing path accepted in key=value form")
	}
	if _, ok := parseUserDataDir([]string{"--no-sandbox"}, exists); ok {
		t.Error("match without flag")
	}
	if _, ok := parseUserDataDir(nil, exists); ok {
		t.Error("match on empty args")
	}
}

func TestBundleRoot(t *testing.T) {
	if root, ok := bundleRoot("/Applications/Antigravity.app/Contents/MacOS/Electron"); !ok || root != "/Applications/Antigravity.app" {
		t.Errorf("bundleRoot = %q/%v", root, ok)
	}
	if _, ok := bundleRoot("/usr/bin/antigravity"); ok {
		t.Error("bundleRoot matched a non-bundle path")
	}
}

func TestExcludeOwnFamily(t *testing.T) {
	self := int32(os.Getpid())
	snaps := []Snapshot{
		{PID: 90001, PPID: self, Name: "antigravity"},  // our child
		{PID: 90002, PPID: 90001, Name: "antigravity"}, // our grandchild
		{PID: 90003, PPID: 1, Name: filepath.Base(os.Args[0])}, // another instance of this binary
		{PID: 90004, PPID: 1, Name: "antigravity"}, // unrelated editor
	}
	if parent := int32(os.Getppid()); parent > 1 {
		snaps = append(snaps, Snapshot{PID: parent, PPID: 1, Name: "bash"})
	}

	kept := excludeOwnFamily(snaps)
	if len(kept) != 1 || kept[0].PID != 90004 {
		t.Errorf("kept = %+v, want only the unrelated editor", kept)
	}
}

func TestNormalizeBundlePath(t *testing.T) {
	got := normalizeBundlePath("/Applications/Antigravity.app/Contents/MacOS/Electron")
	if got != "/Applications/Antigravity.app" {
		t.Errorf("normalized = %q", got)
	}
	if got := normalizeBundlePath("/Applications/Antigravity.app"); got != "/Applications/Antigravity.app" {
		t.Errorf("bundle root changed to %q", got)
	}
	if got := normalizeBundlePath("/usr/bin/antigravity"); got != "/usr/bin/antigravity" {
		t.Errorf("plain path changed to %q", got)
	}
}
