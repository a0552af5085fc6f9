package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/oshokin/modsync/internal/logger"
	"github.com/oshokin/modsync/internal/version"
)

// chunkSize is the read size of one download step.
const chunkSize = 32 * 1024

var (
	// ErrBadStatus is returned when the archive server answers with a non-200 status.
	ErrBadStatus = errors.New("unexpected http status")
	// ErrNoContentLength is returned when the archive size is not declared.
	ErrNoContentLength = errors.New("response does not declare a content length")
	// ErrStreamRead is returned when reading the response body fails mid-stream.
	ErrStreamRead = errors.New("error while downloading file")
	// ErrFileWrite is returned when the scratch file cannot be written.
	ErrFileWrite = errors.New("error while writing to file")
	// ErrTruncatedDownload is returned when fewer bytes arrive than were declared.
	ErrTruncatedDownload = errors.New("download is truncated")
)

// download streams url into the file at dst and returns the number of bytes written.
func (p *Provisioner) download(ctx context.Context, url, dst string) (written int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s, %s: %w", url, response.Status, ErrBadStatus)
	}

	total := response.ContentLength
	if total < 0 {
		return 0, fmt.Errorf("%s: %w", url, ErrNoContentLength)
	}

	file, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrFileWrite, closeErr)
		}
	}()

	logger.InfoKV(ctx, "Downloading", "url", url, "bytes", total, "path", dst)

	p.progress.Start("Downloading "+url, total)
	defer p.progress.Stop()

	return copyChunks(ctx, file, response.Body, total, p.progress)
}

// copyChunks copies src to dst one chunk at a time, reporting each written
// chunk, and checks that exactly total bytes arrived.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress Progress) (int64, error) {
	var (
		written int64
		buf     = make([]byte, chunkSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("%w: %w", ErrFileWrite, err)
			}

			written += int64(n)
			progress.Add(n)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return written, fmt.Errorf("%w: %w", ErrStreamRead, readErr)
		}
	}

	if written != total {
		return written, fmt.Errorf("received %d of %d bytes: %w", written, total, ErrTruncatedDownload)
	}

	return written, nil
}
