// Package depinstall discovers, downloads, and updates the yt-dlp and
// ffmpeg executables the acquisition pipeline depends on, per §4.4.
package depinstall

import (
	"os"
	"os/exec"

	"ytbatch/internal/apppaths"
	"ytbatch/internal/httpfetch"
)

// Installer manages discovery and installation of the two external tools.
type Installer struct {
	paths *apppaths.Paths
}

// New creates an Installer bound to the application's resolved paths.
func New(paths *apppaths.Paths) *Installer {
	httpfetch.UserAgent = requestUserAgent
	return &Installer{paths: paths}
}

// DiscoverYtDlp locates the yt-dlp executable, preferring the managed
// copy colocated with the application binary over one on PATH.
func (i *Installer) DiscoverYtDlp() string {
	return i.discover(apppaths.YtDlpName(), i.paths.YtDlpPath())
}

// DiscoverFFmpeg locates the ffmpeg executable with the same policy.
func (i *Installer) DiscoverFFmpeg() string {
	return i.discover(apppaths.FFmpegName(), i.paths.FFmpegPath())
}

// discover prefers localPath (next to the application binary) so a user
// update is never shadowed by an older system copy, falling back to PATH.
func (i *Installer) discover(name, localPath string) string {
	if st, err := os.Stat(localPath); err == nil && !st.IsDir() {
		return localPath
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

// scratchDir returns a fresh temp directory under the app's temp-download
// area for staging an in-progress archive extraction.
func (i *Installer) scratchDir(prefix string) (string, error) {
	base := i.paths.TempDownload
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(base, prefix+"-*")
}
