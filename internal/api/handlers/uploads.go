// uploads.go — загрузка изображений и их выдача.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/blockhood/internal/api/errors"
	"github.com/bigkaa/blockhood/internal/service"
)

const (
	// multipartOverhead — запас на заголовки multipart и поле prefix.
	multipartOverhead = 64 << 10
	// multipartMemory — часть формы, которая держится в памяти.
	multipartMemory = 1 << 20
	// uploadCacheControl — кэширование загруженных изображений.
	uploadCacheControl = "public, max-age=3600"
)

// UploadImage обрабатывает POST /api/v1/uploads.
// Multipart form: file (обязательно), prefix (опционально).
func (h *APIHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	maxSize := h.svc.Uploads.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Файл больше %d байт", maxSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	result, err := h.svc.Uploads.Upload(service.UploadParams{
		Reader:     file,
		Filename:   header.Filename,
		Prefix:     r.FormValue("prefix"),
		Size:       header.Size,
		UploadedBy: actor.UserID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", result.URL)
	writeJSON(w, http.StatusCreated, result)
}

// ServeUpload обрабатывает GET /uploads/*.
// Поддерживает Range и If-Modified-Since через http.ServeContent.
func (h *APIHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	f, contentType, err := h.svc.Uploads.Open(chi.URLParam(r, "*"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", uploadCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, "", info.ModTime(), f)
}
