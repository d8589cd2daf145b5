package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"epcbooks.org/internal/audit"
	"epcbooks.org/internal/catalog"
	"epcbooks.org/internal/download"
)

func (a *API) handleBooksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBooks(w, r)
	case http.MethodPost:
		a.createBook(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := a.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books})
}

// createBook accepts a multipart form: the metadata fields plus the book
// file itself and an optional cover image.
func (a *API) createBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form expected")
		return
	}

	priceStr := strings.TrimSpace(r.FormValue("price_minor"))
	price, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "price_minor must be an integer in minor units")
		return
	}

	book := catalog.Book{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		PriceMinor:  price,
		Currency:    strings.ToUpper(strings.TrimSpace(r.FormValue("currency"))),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "book file is required")
		return
	}
	defer file.Close()

	book.File, err = saveUpload(file, header, a.downloads.Root())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if img, imgHeader, imgErr := r.FormFile("image"); imgErr == nil {
		defer img.Close()
		book.Image, err = saveUpload(img, imgHeader, a.imagesDir)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	created, err := a.catalog.Add(r.Context(), book)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidTitle),
			errors.Is(err, catalog.ErrInvalidPrice),
			errors.Is(err, catalog.ErrInvalidFile):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "catalog.book.created", map[string]any{
		"book_id": created.ID,
		"file":    created.File,
	})
	writeJSON(w, http.StatusCreated, created)
}

// saveUpload writes the uploaded part under dir using its sanitized
// client-side name and returns that name.
func saveUpload(src multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	name := download.SafeName(header.Filename)
	if name == "" {
		return "", errors.New("upload has no usable file name")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.New("storage directory unavailable")
	}
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", errors.New("cannot store upload")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", errors.New("cannot store upload")
	}
	return name, nil
}
