// Package apppaths resolves the on-disk layout named in §6: the
// application-binary directory (managed yt-dlp/ffmpeg) and the user data
// directory (config, logs, temp download scratch space).
package apppaths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = ".multiyt-dlp"

// Paths holds all application directory paths.
type Paths struct {
	UserData     string // $HOME/.multiyt-dlp (config.json, logs/, temp_downloads/)
	TempDownload string // UserData/temp_downloads — yt-dlp's scratch space
	ExeDir       string // directory containing the running executable
}

// Get resolves Paths for the current OS.
func Get() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	userData := filepath.Join(home, appDirName)
	return &Paths{
		UserData:     userData,
		TempDownload: filepath.Join(userData, "temp_downloads"),
		ExeDir:       filepath.Dir(exePath),
	}, nil
}

// EnsureDirectories creates every directory Paths names.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.UserData, p.TempDownload} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ConfigPath is the path to the JSON settings file.
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.UserData, "config.json")
}

// LogDir is the directory holding latest.log and rotated backups.
func (p *Paths) LogDir() string {
	return filepath.Join(p.UserData, "logs")
}

// binaryName appends .exe on Windows.
func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// YtDlpName is the platform-appropriate yt-dlp executable filename.
func YtDlpName() string { return binaryName("yt-dlp") }

// FFmpegName is the platform-appropriate ffmpeg executable filename.
func FFmpegName() string { return binaryName("ffmpeg") }

// YtDlpPath is the managed location of yt-dlp, next to the application binary.
func (p *Paths) YtDlpPath() string {
	return filepath.Join(p.ExeDir, YtDlpName())
}

// FFmpegPath is the managed location of ffmpeg, next to the application binary.
func (p *Paths) FFmpegPath() string {
	return filepath.Join(p.ExeDir, FFmpegName())
}
