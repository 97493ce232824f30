// Package uagent resolves the editor version to report upstream and builds
// the User-Agent header. The resolved version is the maximum of a known
// stable floor, the locally installed editor, and the remote latest, so an
// outdated or undetectable local install never causes upstream rejection.
package uagent

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
)

const (
	versionURL   = "https://antigravity-auto-updater-974169037036.us-central1.run.app"
	changelogURL = "https://antigravity.google/changelog"

	// Known stable floor: Antigravity 4.1.26 ships Electron 39.2.3 which
	// corresponds to Chrome 132.0.6834.160.
	floorVersion  = "4.1.26"
	floorElectron = "39.2.3"
	floorChrome   = "132.0.6834.160"

	fetchTimeout = 5 * time.Second
	// One second past the HTTP timeout so the HTTP path always loses the
	// race to its own deadline and the probe fails cleanly.
	receiveTimeout = 6 * time.Second

	maxProbeBody = 1 << 20
)

var versionRegexp = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Source identifies which input won version resolution.
type Source string

const (
	SourceFloor  Source = "floor"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Versions is the resolved triple reported in the User-Agent.
type Versions struct {
	Version  string
	Electron string
	Chrome   string
	Source   Source
}

// UserAgent renders the triple as the upstream User-Agent header.
func (v Versions) UserAgent() string {
	return fmt.Sprintf("Antigravity/%s (%s) Chrome/%s Electron/%s",
		v.Version, platformString(), v.Chrome, v.Electron)
}

func platformString() string {
	switch runtime.GOOS {
	case "darwin":
		return "Macintosh; Intel Mac OS X 10_15_7"
	case "windows":
		return "Windows NT 10.0; Win64; x64"
	default:
		return "X11; Linux x86_64"
	}
}

// ParseVersion extracts the first X.Y.Z version from text.
func ParseVersion(text string) (string, bool) {
	m := versionRegexp.FindString(text)
	return m, m != ""
}

// CompareSemver compares dotted decimal versions component by component.
// Missing components count as zero. Returns -1, 0, or 1.
func CompareSemver(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			y, _ = strconv.Atoi(pb[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LocalVersionFunc reports the locally installed editor version, if any.
type LocalVersionFunc func() (string, bool)

// Resolver performs one version resolution.
type Resolver struct {
	local   LocalVersionFunc
	client  *http.Client
	urls    []string
	receive time.Duration
}

// NewResolver builds a resolver. local may be nil when no local install
// detection is available.
func NewResolver(local LocalVersionFunc) *Resolver {
	return &Resolver{
		local:   local,
		client:  &http.Client{Timeout: fetchTimeout},
		urls:    []string{versionURL, changelogURL},
		receive: receiveTimeout,
	}
}

// Resolve returns max(floor, local, remote) with the floor's shell and
// engine versions. Remote failures are silent; the result is always usable.
func (r *Resolver) Resolve() Versions {
	best := floorVersion
	source := SourceFloor

	if r.local != nil {
		if raw, ok := r.local(); ok {
			if v, ok := ParseVersion(raw); ok {
				if CompareSemver(v, best) > 0 {
					best = v
					source = SourceLocal
				} else {
					logger.Info("local editor version is older than the stable floor, keeping floor",
						"local", v, "floor", best)
				}
			}
		}
	}

	if remote, ok := r.fetchRemote(); ok && CompareSemver(remote, best) > 0 {
		logger.Info("remote version is newer, upgrading reported version",
			"remote", remote, "previous", best)
		best = remote
		source = SourceRemote
	}

	return Versions{Version: best, Electron: floorElectron, Chrome: floorChrome, Source: source}
}

// fetchRemote probes the update server and then the changelog page. The
// probe runs on its own goroutine because resolution can be triggered from
// one-shot initializers; the outer receive timeout bounds the wait even if
// the HTTP client misbehaves.
func (r *Resolver) fetchRemote() (string, bool) {
	result := make(chan string, 1)
	go func() {
		for _, url := range r.urls {
			resp, err := r.client.Get(url)
			if err != nil {
				logger.Debug("version probe failed", "url", url, "error", err)
				continue
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
			_ = resp.Body.Close()
			if err != nil {
				continue
			}
			if v, ok := ParseVersion(string(body)); ok {
				result <- v
				return
			}
		}
		result <- ""
	}()

	select {
	case v := <-result:
		return v, v != ""
	case <-time.After(r.receive):
		logger.Debug("version probe timed out")
		return "", false
	}
}

var localVersion LocalVersionFunc

// SetLocalVersionFunc installs the local-install detector. Must be called
// before the first Resolved/UserAgent use to take effect.
func SetLocalVersionFunc(fn LocalVersionFunc) { localVersion = fn }

// Resolved memoizes one resolution for the process lifetime.
var Resolved = sync.OnceValue(func() Versions {
	v := NewResolver(localVersion).Resolve()
	logger.Info("user agent initialized", "version", v.Version, "source", v.Source)
	return v
})

// UserAgent returns the memoized upstream User-Agent header.
func UserAgent() string { return Resolved().UserAgent() }

// OAuthUserAgent is the header used on OAuth authorization requests.
func OAuthUserAgent() string {
	return fmt.Sprintf("vscode/1.X.X (Antigravity/%s)", Resolved().Version)
}

// SessionID is generated once per process launch.
var SessionID = sync.OnceValue(func() string { return uuid.NewString() })
