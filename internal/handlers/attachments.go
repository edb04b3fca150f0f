package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/blob"
	"workflow-portal-go/internal/blob/core"
	"workflow-portal-go/internal/models"
)

const (
	maxUploadBody  = 4 * blob.DefaultMaxSize
	multipartInMem = 8 << 20
)

// UploadHandler stores every "file" part of a multipart form. The client
// references the returned digests in a later submission or response.
// An optional "lastModified" value per file (unix millis) is kept as-is.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartInMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, apperr.NewValidationError("Upload too large"))
			return
		}
		h.writeError(w, r, apperr.NewValidationError("Invalid multipart form", err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		h.writeError(w, r, apperr.NewValidationError("file is required"))
		return
	}
	lastModified := r.MultipartForm.Value["lastModified"]

	files := make([]models.FileAttachment, 0, len(parts))
	for i, part := range parts {
		meta := blob.UploadMeta{
			Name:        part.Filename,
			ContentType: part.Header.Get("Content-Type"),
		}
		if i < len(lastModified) {
			meta.LastModified, _ = strconv.ParseInt(lastModified[i], 10, 64)
		}

		f, err := part.Open()
		if err != nil {
			h.discard(r, files)
			h.writeError(w, r, err)
			return
		}
		att, err := h.Portal.Upload(r.Context(), f, meta)
		f.Close()
		if err != nil {
			h.discard(r, files)
			h.writeError(w, r, err)
			return
		}
		files = append(files, att)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"files": files})
}

func (h *Handler) discard(r *http.Request, files []models.FileAttachment) {
	for _, f := range files {
		if err := h.Portal.Discard(r.Context(), f.Digest); err != nil {
			h.Log.Warn("Failed to discard upload", zap.String("digest", f.Digest), zap.Error(err))
		}
	}
}

// DownloadHandler redirects to a presigned URL when the backend offers one
// and streams the content otherwise. ?name= sets the download file name.
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	url, err := h.Portal.AttachmentURL(r.Context(), digest)
	switch {
	case err == nil:
		http.Redirect(w, r, url, http.StatusFound)
		return
	case !errors.Is(err, core.ErrUnsupported):
		h.writeError(w, r, err)
		return
	}

	info, rc, err := h.Portal.OpenAttachment(r.Context(), digest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("ETag", `"`+digest+`"`)
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	if name := r.URL.Query().Get("name"); name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("Attachment download interrupted", zap.String("digest", digest), zap.Error(err))
	}
}

// DiscardUploadHandler drops an upload that was never referenced.
func (h *Handler) DiscardUploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Portal.Discard(r.Context(), r.PathValue("digest")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
