// Package httpfetch implements the HEAD-probed, range-capable, retrying
// file downloader described in §4.3: parallel chunks above a size
// threshold, single stream otherwise, with byte-level progress.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	apperr "ytbatch/internal/apperrors"
)

const (
	chunkedThreshold = 20 * 1024 * 1024 // 20 MiB
	numChunks        = 8
	singleStreamBuf  = 8 * 1024 // 8 KiB
	maxRetries       = 3
	chunkReportEvery = 500 * time.Millisecond
)

// Phase names the stage a ProgressSink call describes.
type Phase string

const (
	PhaseDownload Phase = "download"
	PhaseExtract  Phase = "extract"
	PhaseLocate   Phase = "locate"
	PhaseAssemble Phase = "assemble"
)

// ProgressSink receives progress notifications during a fetch (and is
// reused by DependencyInstaller for extract/locate/assemble phases).
type ProgressSink func(phase Phase, determinate bool, bytesDone, bytesTotal int64, humanText string)

// noopSink discards progress notifications.
func noopSink(Phase, bool, int64, int64, string) {}

var httpClient = &http.Client{Timeout: 0} // per-request timeout is via context

// UserAgent, if non-empty, is sent on every HEAD/GET request this package
// issues. DependencyInstaller sets it to match the upstream hosts' expected
// browser-like User-Agent.
var UserAgent string

func setCommonHeaders(req *http.Request) {
	if UserAgent != "" {
		req.Header.Set("User-Agent", UserAgent)
	}
}

// Fetch downloads url to dest, choosing a chunked or single-stream
// strategy based on a HEAD probe, retrying transient failures, and
// reporting progress to sink (which may be nil).
func Fetch(ctx context.Context, url, dest string, sink ProgressSink) error {
	if sink == nil {
		sink = noopSink
	}

	size, acceptRanges := headProbe(ctx, url)

	if size > chunkedThreshold && acceptRanges {
		if err := chunkedFetch(ctx, url, dest, size, sink); err != nil {
			if apperr.IsCancelled(err) {
				return err
			}
			// Any chunk's terminal failure falls back to single-stream on a
			// fresh destination file (§4.3 step 4).
			os.Remove(dest)
			return singleStreamFetch(ctx, url, dest, size, sink)
		}
		return nil
	}

	return singleStreamFetch(ctx, url, dest, size, sink)
}

// headProbe issues a HEAD request and returns content-length (0 if
// unknown) and whether byte ranges are advertised. Failure is non-fatal:
// the caller proceeds with size=0, acceptRanges=false.
func headProbe(ctx context.Context, url string) (size int64, acceptRanges bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	setCommonHeaders(req)
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	size = resp.ContentLength
	if size < 0 {
		size = 0
	}
	return size, resp.Header.Get("Accept-Ranges") == "bytes"
}

// retrySchedule matches §4.3's 1s/2s exponential backoff across 3 attempts.
func retrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, maxRetries-1)
}

// singleStreamFetch GETs the whole body, writing it in 8 KiB chunks and
// reporting progress after each one. total==0 means an unknown size,
// reported as indeterminate progress.
func singleStreamFetch(ctx context.Context, url, dest string, total int64, sink ProgressSink) error {
	op := func() error {
		return attemptSingleStream(ctx, url, dest, total, sink)
	}

	err := backoff.Retry(op, retrySchedule())
	if err != nil {
		if ctx.Err() != nil {
			os.Remove(dest)
			return apperr.NewWithCode("httpfetch.Fetch", apperr.ErrCancelled, apperr.CodeCancelled, "cancelled")
		}
		return apperr.NewWithCode("httpfetch.Fetch", apperr.ErrNetwork, apperr.CodeNetwork, err.Error())
	}
	return nil
}

func attemptSingleStream(ctx context.Context, url, dest string, total int64, sink ProgressSink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	setCommonHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if total == 0 {
		total = resp.ContentLength
	}

	out, err := os.Create(dest)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer out.Close()

	buf := make([]byte, singleStreamBuf)
	var downloaded int64
	for {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			downloaded += int64(n)
			sink(PhaseDownload, total > 0, downloaded, total, progressText(downloaded, total))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if total > 0 && downloaded != total {
		return fmt.Errorf("short read: got %d of %d bytes", downloaded, total)
	}
	return nil
}

// progressText renders a human-readable "X / Y" string, or just X when
// the total is unknown.
func progressText(done, total int64) string {
	if total <= 0 {
		return humanize.Bytes(uint64(done))
	}
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
}

// chunkRange is one byte-range assignment within a chunked fetch.
type chunkRange struct {
	index      int
	start, end int64 // inclusive
	path       string
}

// chunkedFetch splits [0, size-1] into numChunks equal byte ranges,
// fetches them in parallel into a scratch directory, reports combined
// progress every 500ms, and assembles the destination on success.
func chunkedFetch(ctx context.Context, url, dest string, size int64, sink ProgressSink) error {
	scratch, err := os.MkdirTemp("", "ytbatch-fetch-*")
	if err != nil {
		return apperr.Wrap("httpfetch.chunkedFetch", err)
	}
	defer os.RemoveAll(scratch)

	ranges := splitRanges(size, numChunks, scratch)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make([]int64, len(ranges))
	var progressMu sync.Mutex

	var wg sync.WaitGroup
	errs := make(chan error, len(ranges))

	stopReporter := make(chan struct{})
	go reportChunkProgress(&progressMu, progress, size, sink, stopReporter)

	for _, r := range ranges {
		wg.Add(1)
		go func(r chunkRange) {
			defer wg.Done()
			err := fetchChunk(fetchCtx, url, r, func(n int64) {
				progressMu.Lock()
				progress[r.index] = n
				progressMu.Unlock()
			})
			if err != nil {
				errs <- err
				cancel()
			}
		}(r)
	}

	wg.Wait()
	close(stopReporter)
	close(errs)

	if err := <-errs; err != nil {
		if ctx.Err() != nil {
			return apperr.NewWithCode("httpfetch.chunkedFetch", apperr.ErrCancelled, apperr.CodeCancelled, "cancelled")
		}
		return apperr.NewWithCode("httpfetch.chunkedFetch", apperr.ErrNetwork, apperr.CodeNetwork, err.Error())
	}

	sink(PhaseAssemble, true, size, size, progressText(size, size))
	return assembleChunks(dest, ranges)
}

func splitRanges(size int64, n int, scratchDir string) []chunkRange {
	chunkSize := size / int64(n)
	ranges := make([]chunkRange, n)
	for i := 0; i < n; i++ {
		start := int64(i) * chunkSize
		end := start + chunkSize - 1
		if i == n-1 {
			end = size - 1 // last chunk absorbs the remainder
		}
		ranges[i] = chunkRange{
			index: i,
			start: start,
			end:   end,
			path:  filepath.Join(scratchDir, fmt.Sprintf("chunk-%02d", i)),
		}
	}
	return ranges
}

// fetchChunk retries a single byte-range GET with the same backoff
// schedule as the single-stream path.
func fetchChunk(ctx context.Context, url string, r chunkRange, onProgress func(int64)) error {
	op := func() error {
		return attemptChunk(ctx, url, r, onProgress)
	}
	return backoff.Retry(op, retrySchedule())
}

func attemptChunk(ctx context.Context, url string, r chunkRange, onProgress func(int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	setCommonHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.start, r.end))

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for chunk %d", resp.StatusCode, r.index)
	}

	out, err := os.Create(r.path)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer out.Close()

	buf := make([]byte, singleStreamBuf)
	var n int64
	for {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		read, rerr := resp.Body.Read(buf)
		if read > 0 {
			if _, werr := out.Write(buf[:read]); werr != nil {
				return werr
			}
			n += int64(read)
			onProgress(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	want := r.end - r.start + 1
	if n != want {
		return fmt.Errorf("chunk %d: short read: got %d of %d bytes", r.index, n, want)
	}
	return nil
}

func reportChunkProgress(mu *sync.Mutex, progress []int64, total int64, sink ProgressSink, stop <-chan struct{}) {
	ticker := time.NewTicker(chunkReportEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mu.Lock()
			var sum int64
			for _, p := range progress {
				sum += p
			}
			mu.Unlock()
			sink(PhaseDownload, true, sum, total, progressText(sum, total))
		}
	}
}

// assembleChunks concatenates chunk files, in order, into dest. Atomic
// replacement of any previous destination is the caller's responsibility
// (§4.3 step 5).
func assembleChunks(dest string, ranges []chunkRange) error {
	out, err := os.Create(dest)
	if err != nil {
		return apperr.Wrap("httpfetch.assembleChunks", err)
	}
	defer out.Close()

	for _, r := range ranges {
		if err := appendFile(out, r.path); err != nil {
			return apperr.Wrap("httpfetch.assembleChunks", err)
		}
	}
	return nil
}

func appendFile(out *os.File, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(out, in)
	return err
}
