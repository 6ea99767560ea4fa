package httpd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

const copyBufferSize = 64 * 1024

var (
	errMalformedRange     = errors.New("malformed range")
	errUnsatisfiableRange = errors.New("unsatisfiable range")
)

// sendFile streams a file, honoring a single bytes range. The file is
// opened fresh per request so a library mutation cannot invalidate the
// handle mid-transfer.
func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, path, mimeType string) {
	file, err := os.Open(path)
	if err != nil {
		s.writeHeaders(w, 0)
		switch {
		case os.IsNotExist(err):
			w.WriteHeader(http.StatusNotFound)
		case os.IsPermission(err):
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.writeHeaders(w, 0)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	size := uint64(stat.Size())

	start, end := uint64(0), size
	status := http.StatusOK
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, err = parseRange(rangeHeader, size)
		if err != nil {
			s.writeHeaders(w, 0)
			if errors.Is(err, errUnsatisfiableRange) {
				w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			} else {
				w.WriteHeader(http.StatusBadRequest)
			}
			return
		}
		status = http.StatusPartialContent
	}

	s.writeHeaders(w, end-start)
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ContentFeatures.DLNA.ORG", "DLNA.ORG_OP=11;DLNA.ORG_CI=0")
	w.Header().Set("TransferMode.DLNA.ORG", "Streaming")
	if status == http.StatusPartialContent {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, size))
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := file.Seek(int64(start), io.SeekStart); err != nil {
		return
	}

	// Renderers drop the connection freely when seeking, so write
	// errors just end the transfer.
	buf := make([]byte, copyBufferSize)
	remaining := end - start
	for remaining > 0 {
		chunk := uint64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := file.Read(buf[:chunk])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			remaining -= uint64(n)
		}
		if err != nil {
			return
		}
	}
}

// parseRange parses a bytes range header against a file of the given
// size. The returned end is exclusive. Only the first range of the
// header is honored.
func parseRange(header string, size uint64) (start, end uint64, err error) {
	spec := strings.TrimSpace(header)
	// The range unit is case-insensitive on the wire.
	if len(spec) < len("bytes=") || !strings.EqualFold(spec[:len("bytes=")], "bytes=") {
		return 0, 0, fmt.Errorf("%w: %q", errMalformedRange, header)
	}
	spec = spec[len("bytes="):]
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	first, last, dashed := strings.Cut(spec, "-")
	switch {
	case dashed && first == "" && last != "":
		// Suffix form: the final N bytes.
		suffix, perr := strconv.ParseUint(last, 10, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("%w: %q", errMalformedRange, header)
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size, nil
	case first != "":
		start, perr := strconv.ParseUint(first, 10, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("%w: %q", errMalformedRange, header)
		}
		if !dashed || last == "" {
			// Open ended: everything from start.
			if start >= size {
				return 0, 0, fmt.Errorf("%w: start %d beyond %d", errUnsatisfiableRange, start, size)
			}
			return start, size, nil
		}
		lastByte, perr := strconv.ParseUint(last, 10, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("%w: %q", errMalformedRange, header)
		}
		if start > lastByte || lastByte > size {
			return 0, 0, fmt.Errorf("%w: %d-%d of %d", errUnsatisfiableRange, start, lastByte, size)
		}
		end := lastByte + 1
		if end > size {
			end = size
		}
		return start, end, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", errMalformedRange, header)
}
