package depinstall

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ulikunitz/xz"

	apperr "ytbatch/internal/apperrors"
	"ytbatch/internal/apppaths"
	"ytbatch/internal/httpfetch"
)

// InstallYtDlp downloads the OS-appropriate yt-dlp build to a staging
// path, sets the executable bit on POSIX, and atomically replaces the
// managed copy next to the application binary.
func (i *Installer) InstallYtDlp(ctx context.Context, sink httpfetch.ProgressSink) (string, error) {
	src, ok := ytDlpURLs[runtime.GOOS]
	if !ok {
		return "", apperr.NewWithCode("depinstall.InstallYtDlp", apperr.ErrUnexpected, apperr.CodeUnexpected,
			fmt.Sprintf("unsupported OS: %s", runtime.GOOS))
	}

	staging := i.paths.YtDlpPath() + ".download"
	defer os.Remove(staging)

	if err := httpfetch.Fetch(ctx, src, staging, sink); err != nil {
		return "", classifyFetchErr("depinstall.InstallYtDlp", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(staging, 0755); err != nil {
			return "", apperr.NewWithCode("depinstall.InstallYtDlp", apperr.ErrFile, apperr.CodeFile, err.Error())
		}
	}

	final := i.paths.YtDlpPath()
	if err := atomicReplace(staging, final); err != nil {
		return "", apperr.NewWithCode("depinstall.InstallYtDlp", apperr.ErrFile, apperr.CodeFile, err.Error())
	}
	return final, nil
}

// InstallFFmpeg downloads the OS-appropriate archive, extracts it into a
// scratch directory, locates the ffmpeg executable inside, and atomically
// moves it next to the application binary. The scratch directory is
// removed on every exit path.
func (i *Installer) InstallFFmpeg(ctx context.Context, sink httpfetch.ProgressSink) (string, error) {
	src, ok := ffmpegURLs[runtime.GOOS]
	if !ok {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrUnexpected, apperr.CodeUnexpected,
			fmt.Sprintf("unsupported OS: %s", runtime.GOOS))
	}

	scratch, err := i.scratchDir("ffmpeg")
	if err != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrFile, apperr.CodeFile, err.Error())
	}
	defer os.RemoveAll(scratch)

	archiveName := basenameFromURL(src)
	archivePath := filepath.Join(scratch, archiveName)

	if err := httpfetch.Fetch(ctx, src, archivePath, sink); err != nil {
		return "", classifyFetchErr("depinstall.InstallFFmpeg", err)
	}

	if ctx.Err() != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrCancelled, apperr.CodeCancelled, "cancelled")
	}

	if sink != nil {
		sink(httpfetch.PhaseExtract, false, 0, 0, "Extracting...")
	}

	extractDir := filepath.Join(scratch, "extracted")
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrFile, apperr.CodeFile, err.Error())
	}

	switch {
	case strings.HasSuffix(archiveName, ".zip"):
		if err := extractZip(archivePath, extractDir); err != nil {
			return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrArchive, apperr.CodeArchive, err.Error())
		}
	case strings.HasSuffix(archiveName, ".tar.xz"):
		if err := extractTarXz(archivePath, extractDir); err != nil {
			return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrArchive, apperr.CodeArchive, err.Error())
		}
	default:
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrArchive, apperr.CodeArchive,
			fmt.Sprintf("unrecognized archive format: %s", archiveName))
	}

	if ctx.Err() != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrCancelled, apperr.CodeCancelled, "cancelled")
	}

	if sink != nil {
		sink(httpfetch.PhaseLocate, false, 0, 0, "Locating executable...")
	}

	wantName := apppaths.FFmpegName()
	found, err := locateExecutable(extractDir, wantName)
	if err != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrFile, apperr.CodeFile, err.Error())
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(found, 0755); err != nil {
			return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrFile, apperr.CodeFile, err.Error())
		}
	}

	final := i.paths.FFmpegPath()
	if err := atomicReplace(found, final); err != nil {
		return "", apperr.NewWithCode("depinstall.InstallFFmpeg", apperr.ErrFile, apperr.CodeFile, err.Error())
	}
	return final, nil
}

// atomicReplace moves src onto dest, removing any existing dest first so
// the rename is a true replace rather than an error on platforms that
// reject renaming over an existing file.
func atomicReplace(src, dest string) error {
	os.Remove(dest)
	if err := os.Rename(src, dest); err != nil {
		// Cross-device rename: fall back to copy+remove.
		if cerr := copyFile(src, dest); cerr != nil {
			return cerr
		}
		os.Remove(src)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// basenameFromURL extracts and unescapes the last URL path segment, the
// way the original installer names the downloaded archive.
func basenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Base(rawURL)
	}
	unescaped, err := url.PathUnescape(u.Path)
	if err != nil {
		unescaped = u.Path
	}
	return filepath.Base(unescaped)
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes extraction directory: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// extractTarXz extracts a .tar.xz archive using ulikunitz/xz for
// decompression layered under the standard library's tar reader.
func extractTarXz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return err
	}

	return extractTar(xr, destDir)
}

// locateExecutable walks dir looking for a file whose base name matches
// wantName case-insensitively (archives may ship "ffmpeg" without the
// extension bundled alongside other tools).
func locateExecutable(dir, wantName string) (string, error) {
	var found string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found != "" {
			return nil
		}
		if !info.IsDir() && strings.EqualFold(info.Name(), wantName) {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("could not find %q in archive", wantName)
	}
	return found, nil
}

// classifyFetchErr re-tags an httpfetch error under DependencyInstaller's
// own operation name, preserving the underlying taxonomy code.
func classifyFetchErr(op string, err error) error {
	if apperr.IsCancelled(err) {
		return apperr.NewWithCode(op, apperr.ErrCancelled, apperr.CodeCancelled, "cancelled")
	}
	if code, ok := apperr.CodeOf(err); ok {
		return apperr.NewWithCode(op, apperr.ErrNetwork, code, err.Error())
	}
	return apperr.NewWithCode(op, apperr.ErrNetwork, apperr.CodeNetwork, err.Error())
}
