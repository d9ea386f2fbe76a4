// Package config handles loading, saving, and validating the JSON
// settings document described in §6 of the external-interfaces contract.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var allowedLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

var allowedResolutions = map[string]bool{"Best": true, "1080": true, "720": true, "480": true}
var allowedAudioFormats = map[string]bool{"best": true, "mp3": true, "m4a": true, "flac": true, "wav": true}

// filenameTemplateRef matches the %(title) or %(id) yt-dlp output
// template fields a valid filename template must reference.
var filenameTemplateRef = regexp.MustCompile(`%\((title|id)`)

// Config is the validated, mutex-guarded application settings document.
type Config struct {
	DownloadType             string `json:"download_type"`
	VideoResolution          string `json:"video_resolution"`
	AudioFormat              string `json:"audio_format"`
	EmbedThumbnail           bool   `json:"embed_thumbnail"`
	EmbedMetadata            bool   `json:"embed_metadata"`
	FilenameTemplate         string `json:"filename_template"`
	MaxConcurrentDownloads   int    `json:"max_concurrent_downloads"`
	LastOutputPath           string `json:"last_output_path"`
	LogLevel                 string `json:"log_level"`
	CheckForUpdatesOnStartup bool   `json:"check_for_updates_on_startup"`
	SkippedUpdateVersion     string `json:"skipped_update_version"`

	mu       sync.RWMutex
	filePath string
}

// Default returns the settings document's defaults, matching the
// original app's ConfigManager.defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DownloadType:             "video",
		VideoResolution:          "1080",
		AudioFormat:              "mp3",
		EmbedThumbnail:           true,
		EmbedMetadata:            false,
		FilenameTemplate:         "%(title).100s [%(id)s].%(ext)s",
		MaxConcurrentDownloads:   4,
		LastOutputPath:           home,
		LogLevel:                 "INFO",
		CheckForUpdatesOnStartup: true,
		SkippedUpdateVersion:     "",
	}
}

// Load reads configDir/config.json, merges it over the defaults,
// validates it, and applies env overrides. On missing file it returns
// defaults. On a corrupt or schema-invalid file it backs the file up to
// "<path>.<unix-epoch>.bak", writes the defaults back to the config path,
// and returns them, same as the original app's ConfigManager.load.
func Load(configDir string) (*Config, error) {
	filePath := filepath.Join(configDir, "config.json")
	cfg := Default()
	cfg.filePath = filePath

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		backupCorrupt(filePath)
		cfg = Default()
		cfg.filePath = filePath
		cfg.Save()
		return applyEnvOverrides(cfg), nil
	}
	cfg.filePath = filePath

	cfg.validate()
	return applyEnvOverrides(cfg), nil
}

func backupCorrupt(filePath string) {
	if _, err := os.Stat(filePath); err != nil {
		return
	}
	backup := filePath + "." + strconv.FormatInt(time.Now().Unix(), 10) + ".bak"
	os.Rename(filePath, backup)
}

// applyEnvOverrides applies dev/CI overrides for the two fields most
// useful to flip without editing config.json on disk.
func applyEnvOverrides(cfg *Config) *Config {
	if v := os.Getenv("YTBATCH_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentDownloads = n
		}
	}
	if v := os.Getenv("YTBATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	cfg.validate()
	return cfg
}

// validate reverts out-of-range or malformed fields to their defaults,
// following the original app's ConfigManager.validate rules.
func (c *Config) validate() {
	defaults := Default()

	if c.MaxConcurrentDownloads < 1 || c.MaxConcurrentDownloads > 20 {
		c.MaxConcurrentDownloads = defaults.MaxConcurrentDownloads
	}

	level := strings.ToUpper(c.LogLevel)
	if !contains(allowedLogLevels, level) {
		level = defaults.LogLevel
	}
	c.LogLevel = level

	if c.DownloadType != "video" && c.DownloadType != "audio" {
		c.DownloadType = defaults.DownloadType
	}

	if !allowedResolutions[c.VideoResolution] {
		c.VideoResolution = defaults.VideoResolution
	}

	if !allowedAudioFormats[c.AudioFormat] {
		c.AudioFormat = defaults.AudioFormat
	}

	if !isValidFilenameTemplate(c.FilenameTemplate) {
		c.FilenameTemplate = defaults.FilenameTemplate
	}

	if info, err := os.Stat(c.LastOutputPath); err != nil || !info.IsDir() {
		c.LastOutputPath = defaults.LastOutputPath
	}
}

// isValidFilenameTemplate enforces §3's JobOptions filename rule: must
// reference %(title) or %(id), must not contain path separators, "..",
// or be absolute.
func isValidFilenameTemplate(template string) bool {
	if template == "" {
		return false
	}
	if !filenameTemplateRef.MatchString(template) {
		return false
	}
	if strings.Contains(template, "/") || strings.Contains(template, "\\") || strings.Contains(template, "..") {
		return false
	}
	if filepath.IsAbs(template) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Save writes the current config to disk as indented JSON.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.filePath, data, 0644)
}

// Update executes fn with the mutex held, then re-validates.
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
	c.validate()
}

// Get returns a defensive copy of the settings.
func (c *Config) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		DownloadType:             c.DownloadType,
		VideoResolution:          c.VideoResolution,
		AudioFormat:              c.AudioFormat,
		EmbedThumbnail:           c.EmbedThumbnail,
		EmbedMetadata:            c.EmbedMetadata,
		FilenameTemplate:         c.FilenameTemplate,
		MaxConcurrentDownloads:   c.MaxConcurrentDownloads,
		LastOutputPath:           c.LastOutputPath,
		LogLevel:                 c.LogLevel,
		CheckForUpdatesOnStartup: c.CheckForUpdatesOnStartup,
		SkippedUpdateVersion:     c.SkippedUpdateVersion,
	}
}

// ValidateFilenameTemplate exposes the template check for callers
// validating a JobOptions snapshot outside of Config (§3).
func ValidateFilenameTemplate(template string) bool {
	return isValidFilenameTemplate(template)
}
