// Package handler provides the HTTP handlers for the FileDesk API.
package handler

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/CageChen/filedesk/internal/config"
	"github.com/CageChen/filedesk/internal/fs"
	"github.com/CageChen/filedesk/internal/preview"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is allowed on top of the file payload for headers
// and boundaries.
const multipartOverhead = 1 << 20

const previewSuffix = "/preview"

// UploadedFile describes one stored upload.
type UploadedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Message string         `json:"message"`
	Count   int            `json:"count"`
	Files   []UploadedFile `json:"files"`
}

// FileHandler serves uploads, listings and file content.
type FileHandler struct {
	backend  fs.Backend
	renderer *preview.Renderer
	limits   config.UploadConfig
}

// NewFileHandler creates a file handler over backend.
func NewFileHandler(backend fs.Backend, limits config.UploadConfig) *FileHandler {
	return &FileHandler{
		backend:  backend,
		renderer: preview.NewRenderer(),
		limits:   limits,
	}
}

// Upload stores the multipart "files" field. Files that fail are skipped;
// the response lists only the ones that were stored.
func (h *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.limits.MaxFiles)*h.limits.MaxFileSize+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "No files uploaded")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, "No files uploaded")
		return
	}
	if len(files) > h.limits.MaxFiles {
		badRequest(c, fmt.Sprintf("Too many files, at most %d per upload", h.limits.MaxFiles))
		return
	}

	log := logger(c)
	stored := make([]UploadedFile, 0, len(files))
	for _, fh := range files {
		up, err := h.store(c, fh)
		if err != nil {
			log.WithFields(logrus.Fields{
				"name": fh.Filename,
				"size": humanize.Bytes(uint64(fh.Size)),
			}).WithError(err).Warn("upload skipped")
			continue
		}
		stored = append(stored, up)
	}

	if len(stored) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload files"})
		return
	}

	log.WithField("count", len(stored)).Info("files uploaded")
	c.JSON(http.StatusOK, UploadResponse{
		Message: fmt.Sprintf("%d file(s) uploaded successfully", len(stored)),
		Count:   len(stored),
		Files:   stored,
	})
}

func (h *FileHandler) store(c *gin.Context, fh *multipart.FileHeader) (UploadedFile, error) {
	name := filepath.Base(fh.Filename)
	if err := fs.ValidateName(name); err != nil {
		return UploadedFile{}, err
	}
	if fh.Size > h.limits.MaxFileSize {
		return UploadedFile{}, fmt.Errorf("file exceeds the %s limit", humanize.IBytes(uint64(h.limits.MaxFileSize)))
	}

	f, err := fh.Open()
	if err != nil {
		return UploadedFile{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return UploadedFile{}, err
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = contentType(name, content)
	}
	if err := h.backend.AddUploaded(c.Request.Context(), name, content, mimeType); err != nil {
		return UploadedFile{}, err
	}
	return UploadedFile{Name: name, Size: int64(len(content)), MimeType: mimeType}, nil
}

// List returns the metadata of every stored file.
func (h *FileHandler) List(c *gin.Context) {
	entries, err := h.backend.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Get serves GET /files/*filename: the raw content, or the rendered
// preview when the path ends in /preview.
func (h *FileHandler) Get(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("filename"), "/")
	if name, ok := strings.CutSuffix(raw, previewSuffix); ok && name != "" {
		h.preview(c, name)
		return
	}
	h.read(c, raw)
}

func (h *FileHandler) read(c *gin.Context, name string) {
	if !validName(c, name) {
		return
	}
	content, err := h.backend.Read(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType(name, content), content)
}

func (h *FileHandler) preview(c *gin.Context, name string) {
	if !validName(c, name) {
		return
	}
	content, err := h.backend.Read(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.renderer.Render(name, content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render file: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete removes a file.
func (h *FileHandler) Delete(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filename"), "/")
	if !validName(c, name) {
		return
	}
	if err := h.backend.Delete(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("File %s deleted.", name)})
}

// PreviewCSS serves the stylesheet for highlighted previews.
func (h *FileHandler) PreviewCSS(c *gin.Context) {
	css, err := h.renderer.CSS()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}

// validName writes a 400 when name is not a usable file name. Names
// arrive through a catch-all route, so separators reach this check.
func validName(c *gin.Context, name string) bool {
	if strings.TrimSpace(name) == "" {
		badRequest(c, msgFilenameRequired)
		return false
	}
	if err := fs.ValidateName(name); err != nil {
		badRequest(c, msgInvalidFilename)
		return false
	}
	return true
}

func contentType(name string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}
