package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/storage"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedImageExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// UploadHandlers serves image uploads backed by the configured file store
type UploadHandlers struct {
	files       storage.FileStore
	metrics     *observability.Metrics
	maxFileSize int64
	maxFiles    int
}

// NewUploadHandlers creates the upload handler group
func NewUploadHandlers(files storage.FileStore, metrics *observability.Metrics, maxFileSize int64, maxFiles int) *UploadHandlers {
	return &UploadHandlers{files: files, metrics: metrics, maxFileSize: maxFileSize, maxFiles: maxFiles}
}

// RegisterRoutes mounts the upload endpoints under /uploads
func (h *UploadHandlers) RegisterRoutes(router *mux.Router, authMW *middleware.AuthMiddleware) {
	sub := router.PathPrefix("/uploads").Subrouter()
	sub.Use(authMW.RequireAuth)
	sub.HandleFunc("", h.Upload).Methods("POST")
}

// Upload handles POST /api/uploads. It accepts a single "file" part or
// up to maxFiles "files" parts, images only.
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	// The hard cap leaves headroom for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize*int64(h.maxFiles)+1<<20)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		h.countUpload("rejected")
		httputil.WriteError(w, r, apierr.Validation("No se pudo procesar el formulario multipart"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.countUpload("rejected")
		httputil.WriteError(w, r, apierr.Validation("No se recibió ningún archivo"))
		return
	}
	if len(headers) > h.maxFiles {
		h.countUpload("rejected")
		httputil.WriteError(w, r, apierr.Validation(fmt.Sprintf("Máximo %d archivos por solicitud", h.maxFiles)))
		return
	}

	for _, header := range headers {
		if err := h.checkFile(header); err != nil {
			h.countUpload("rejected")
			httputil.WriteError(w, r, err)
			return
		}
	}

	stored := make([]*storage.StoredFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			h.countUpload("error")
			httputil.WriteError(w, r, err)
			return
		}
		result, err := h.files.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
		file.Close()
		if err != nil {
			h.countUpload("error")
			observability.FromContext(r.Context()).WithError(err).Error("upload failed")
			httputil.WriteError(w, r, err)
			return
		}
		h.countUpload("success")
		h.observeBytes(result.Size)
		stored = append(stored, result)
	}

	httputil.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"files": stored,
		"count": len(stored),
	}, "Archivos subidos exitosamente")
}

func (h *UploadHandlers) checkFile(header *multipart.FileHeader) error {
	if header.Size > h.maxFileSize {
		return apierr.Validation(fmt.Sprintf("El archivo %s supera el tamaño máximo de %d bytes", header.Filename, h.maxFileSize)).
			WithDetails(map[string]interface{}{"filename": header.Filename, "size": header.Size})
	}
	contentType := header.Header.Get("Content-Type")
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageTypes[contentType] || !allowedImageExtensions[ext] {
		return apierr.Validation("Solo se permiten imágenes (jpeg, jpg, png, webp, gif)").
			WithDetails(map[string]string{"filename": header.Filename, "mimetype": contentType})
	}
	return nil
}

func (h *UploadHandlers) countUpload(status string) {
	if h.metrics != nil {
		h.metrics.UploadsTotal.WithLabelValues("store", status).Inc()
	}
}

func (h *UploadHandlers) observeBytes(n int64) {
	if h.metrics != nil {
		h.metrics.UploadBytes.WithLabelValues("store").Observe(float64(n))
	}
}
