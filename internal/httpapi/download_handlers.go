package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"epcbooks.org/internal/audit"
	"epcbooks.org/internal/download"
	"epcbooks.org/internal/obs"
)

type downloadGenerateRequest struct {
	FileID     string `json:"fileId"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

func (a *API) handleDownloadGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req downloadGenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	fileID := strings.TrimSpace(req.FileID)
	if fileID == "" {
		writeError(w, r, http.StatusBadRequest, "fileId is required")
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, r, http.StatusBadRequest, "ttlSeconds must be >= 0")
		return
	}

	grant, err := a.downloads.Issue(fileID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "download.link.generated", map[string]any{
		"file":       download.SafeName(fileID),
		"expires_at": grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleDownloadResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// The limiter runs before any token work so probing invalid tokens
	// burns the caller's budget too.
	if !a.downloadLimiter.allow(clientIP(r)) {
		obs.CountDownload("rate_limited")
		w.Header().Set("Retry-After", strconv.Itoa(a.downloadLimiter.retryAfterSeconds()))
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/download/")
	if fileID == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	tok := r.URL.Query().Get("token")
	if tok == "" {
		obs.CountDownload("missing_token")
		writeError(w, r, http.StatusBadRequest, "token query parameter is required")
		return
	}

	f, fi, err := a.downloads.Open(fileID, tok)
	switch {
	case errors.Is(err, download.ErrInvalidToken):
		obs.CountDownload("forbidden")
		writeError(w, r, http.StatusForbidden, "invalid or expired token")
		return
	case errors.Is(err, download.ErrNotFound):
		obs.CountDownload("not_found")
		writeError(w, r, http.StatusNotFound, "file not found")
		return
	case err != nil:
		obs.CountDownload("error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	name := download.SafeName(fileID)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; all we can do is record the broken stream.
		obs.Log("error", "download_stream_failed", map[string]any{
			"file": name,
			"err":  err.Error(),
		})
		return
	}

	obs.CountDownload("ok")
	_ = audit.LogEvent(r.Context(), "download.served", map[string]any{
		"file":  name,
		"bytes": fi.Size(),
	})
}
