package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/storage"
)

// Mimetypes that can execute script in a browser context; these are always
// served as attachments unless the caller marked the content trusted.
var riskyMimetypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"image/svg+xml":         true,
	"application/xml":       true,
	"text/xml":              true,
}

// SendFileOptions control download serving.
type SendFileOptions struct {
	// Filename is used for mimetype guessing and Content-Disposition.
	Filename string

	// Mimetype overrides guessing when set.
	Mimetype string

	// Restricted suppresses public cache headers.
	Restricted bool

	// Trusted allows risky mimetypes to render inline.
	Trusted bool

	// AsAttachment forces a download disposition.
	AsAttachment bool

	// ChunkSize is the copy buffer size; zero uses the default.
	ChunkSize int
}

// SendObject streams an object version to the client with range, ETag,
// checksum, cache, and XSS-safety headers. The open callback supplies the
// blob reader; it is only invoked when a body must actually be served.
func SendObject(w http.ResponseWriter, r *http.Request, version *models.ObjectVersion, open func() (io.ReadCloser, error), opts SendFileOptions) error {
	file := version.File
	if file == nil {
		NotFound(w, "object not found")
		return nil
	}

	mimetype := opts.Mimetype
	if mimetype == "" && opts.Filename != "" {
		mimetype = mime.TypeByExtension(path.Ext(opts.Filename))
	}
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	etag := `"` + file.Checksum + `"`

	header := w.Header()
	header.Set("Content-Type", mimetype)
	header.Set("ETag", etag)
	header.Set("Last-Modified", file.CreatedAt.UTC().Format(http.TimeFormat))
	header.Set("Accept-Ranges", "bytes")

	if algo, digest := storage.SplitChecksum(file.Checksum); algo == "md5" {
		header.Set("Content-MD5", digest)
	}

	// XSS-safety headers on every download.
	header.Set("Content-Security-Policy", "default-src 'none'")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Download-Options", "noopen")
	header.Set("X-Frame-Options", "deny")
	header.Set("X-XSS-Protection", "1; mode=block")

	if opts.Restricted {
		header.Set("Cache-Control", "private")
	} else {
		header.Set("Cache-Control", "public, max-age=43200")
	}

	header.Set("Content-Disposition", contentDisposition(opts, mimetype))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	start, length, ranged, ok := parseRange(r, etag, file.Size)
	if !ok {
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
		WriteError(w, http.StatusRequestedRangeNotSatisfiable, "invalid range")
		return nil
	}

	header.Set("Content-Length", strconv.FormatInt(length, 10))
	if ranged {
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, file.Size))
	}

	status := http.StatusOK
	if ranged {
		status = http.StatusPartialContent
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return nil
	}

	reader, err := open()
	if err != nil {
		return err
	}
	defer reader.Close()

	if start > 0 {
		if err := skipTo(reader, start); err != nil {
			return err
		}
	}

	w.WriteHeader(status)

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	_, err = io.CopyBuffer(w, io.LimitReader(reader, length), buf)
	return err
}

// contentDisposition builds the disposition header with an RFC 5987 encoded
// filename. Risky mimetypes of untrusted content always download.
func contentDisposition(opts SendFileOptions, mimetype string) string {
	attachment := opts.AsAttachment
	if !opts.Trusted && riskyMimetypes[strings.ToLower(strings.TrimSpace(strings.Split(mimetype, ";")[0]))] {
		attachment = true
	}

	if !attachment {
		return "inline"
	}
	if opts.Filename == "" {
		return "attachment"
	}

	ascii := strings.Map(func(r rune) rune {
		if r < 32 || r > 126 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, opts.Filename)

	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		ascii, url.PathEscape(opts.Filename))
}

// parseRange interprets a single-range Range header against the blob size,
// honoring If-Range. Returns (start, length, ranged, ok).
func parseRange(r *http.Request, etag string, size int64) (int64, int64, bool, bool) {
	spec := r.Header.Get("Range")
	if spec == "" {
		return 0, size, false, true
	}

	// A stale validator downgrades the request to a full response.
	if ifRange := r.Header.Get("If-Range"); ifRange != "" && ifRange != etag {
		return 0, size, false, true
	}

	if !strings.HasPrefix(spec, "bytes=") {
		return 0, 0, false, false
	}
	spec = strings.TrimPrefix(spec, "bytes=")
	if strings.Contains(spec, ",") {
		// Multi-range requests are not served; fall back to the full body.
		return 0, size, false, true
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, false, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false, false
		}
		if n > size {
			n = size
		}
		return size - n, n, true, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false, false
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, false, false
		}
		if end >= size {
			end = size - 1
		}
	}

	return start, end - start + 1, true, true
}

// skipTo advances the reader to the range start, seeking when the backend
// supports it and discarding otherwise.
func skipTo(reader io.Reader, start int64) error {
	if seeker, ok := reader.(io.Seeker); ok {
		_, err := seeker.Seek(start, io.SeekStart)
		return err
	}
	_, err := io.CopyN(io.Discard, reader, start)
	return err
}
