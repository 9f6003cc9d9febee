package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"stemboard/core/apperr"
	"stemboard/core/media"
	"stemboard/logger"
	"stemboard/storage"

	"github.com/gorilla/mux"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

// ListDemosHandler returns a project's demos with their stems.
func (h *APIHandler) ListDemosHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeMessage(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	demos, err := h.media.ListWithStems(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, demos)
}

// UploadDemoHandler accepts multipart fields projectId and file.
func (h *APIHandler) UploadDemoHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	file, closeFile, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	demo, err := h.media.UploadAsset(r.Context(), userID, r.FormValue("projectId"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, demo)
}

// UploadStemHandler accepts a multipart file for the demo in the path.
func (h *APIHandler) UploadStemHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	file, closeFile, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	stem, err := h.media.UploadStem(r.Context(), userID, mux.Vars(r)["id"], file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stem)
}

// readUpload parses the multipart form and opens its "file" part. The body
// is capped slightly above the upload limit.
func (h *APIHandler) readUpload(w http.ResponseWriter, r *http.Request) (media.File, func(), error) {
	limit := h.media.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return media.File{}, nil, apperr.Validation("upload", "File size exceeds "+strconv.FormatInt(limit>>20, 10)+" MB limit.")
		}
		return media.File{}, nil, apperr.Validation("upload", "Invalid multipart form")
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		return media.File{}, nil, apperr.Validation("upload", "file is required")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = media.ContentTypeFor(header.Filename)
	}

	f := media.File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        part,
	}
	return f, func() {
		part.Close()
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}, nil
}

// DownloadHandler streams a stored object as an attachment. Only URLs that
// point into our bucket are served.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	fileURL := r.URL.Query().Get("fileUrl")
	if fileURL == "" {
		writeMessage(w, http.StatusBadRequest, "Missing fileUrl parameter")
		return
	}
	key, ok := h.blobs.KeyFromURL(fileURL)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Unsupported fileUrl")
		return
	}

	obj, info, err := h.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}
		logger.Error("Failed to open object", logger.String("key", key), logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Error processing your request")
		return
	}
	defer obj.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))

	if _, err := io.Copy(w, obj); err != nil {
		logger.Warn("Download interrupted", logger.String("key", key), logger.ErrorField(err))
	}
}
