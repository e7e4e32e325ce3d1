package apihttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"streamgate/internal/domain"
	"streamgate/internal/metrics"
)

// handleStreamRange implements GET /stream/:id's direct byte-range
// semantics over the source file (§6): full body without a Range header,
// 206 Partial Content with one, 416 if the range falls outside the file.
func (s *Server) handleStreamRange(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.registry.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if sess.SourceFile == nil {
		writeError(w, http.StatusServiceUnavailable, "source file not ready")
		return
	}
	s.registry.Touch(id)

	size := sess.SourceFile.LengthBytes
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("X-Stream-Ready", strconv.FormatBool(sess.State == domain.Ready))
	w.Header().Set("X-Subtitle-Count", strconv.Itoa(len(sess.SubtitlesDetected)))

	rangeHeader := r.Header.Get("Range")
	start, end := int64(0), size-1
	partial := false
	if rangeHeader != "" {
		start, end, err = parseByteRange(rangeHeader, size)
		if errors.Is(err, errInvalidRange) {
			writeError(w, http.StatusBadRequest, "invalid range")
			return
		}
		if errors.Is(err, errRangeNotSatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			metrics.ByteRangeRequestsTotal.WithLabelValues("not_satisfiable").Inc()
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		partial = true
	}

	reader, err := sess.SourceFile.OpenRange(start, end)
	if err != nil {
		metrics.ByteRangeRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to open source file")
		return
	}
	defer reader.Close()

	length := end - start + 1
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		metrics.ByteRangeRequestsTotal.WithLabelValues("partial").Inc()
		w.WriteHeader(http.StatusPartialContent)
	} else {
		metrics.ByteRangeRequestsTotal.WithLabelValues("full").Inc()
		w.WriteHeader(http.StatusOK)
	}
	_, _ = io.CopyN(w, reader, length)
}
