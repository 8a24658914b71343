package request

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conduit-lang/waypoint/pkg/web/response"
)

// UploadConfig configures file upload handling
type UploadConfig struct {
	MaxFileSize   int64    // Maximum size per file (in bytes)
	MaxTotalSize  int64    // Maximum total size for all files of a field
	AllowedTypes  []string // Allowed MIME types or prefixes (empty = allow all)
	AllowedExts   []string // Allowed file extensions (empty = allow all)
	Dir           string   // Directory to store uploaded files (empty = keep in the form)
	GenerateNames bool     // Auto-generate unique filenames when storing
}

// DefaultUploadConfig returns default upload configuration
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxFileSize:   10 << 20,
		MaxTotalSize:  50 << 20,
		GenerateNames: true,
	}
}

// Limits narrows the upload configuration for one parameter. Zero fields keep
// the configured value.
type Limits struct {
	MaxFileSize  int64
	AllowedTypes []string
	AllowedExts  []string
}

// UploadedFile is one file received in a multipart request
type UploadedFile struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Path        string `json:"path,omitempty"`

	header *multipart.FileHeader
}

// Open opens the uploaded content
func (f *UploadedFile) Open() (multipart.File, error) {
	if f.header == nil {
		return nil, fmt.Errorf("upload %s has no content", f.Filename)
	}
	return f.header.Open()
}

// Uploader extracts and validates uploaded files
type Uploader struct {
	config UploadConfig
}

// NewUploader creates an uploader with config
func NewUploader(config UploadConfig) *Uploader {
	return &Uploader{config: config}
}

// File returns the first file of field, or nil when none was uploaded
func (u *Uploader) File(r *http.Request, field string, limits Limits) (*UploadedFile, error) {
	headers, err := u.headers(r, field)
	if err != nil || len(headers) == 0 {
		return nil, err
	}
	return u.accept(field, headers[0], u.merge(limits))
}

// Files returns every file of field, or nil when none was uploaded
func (u *Uploader) Files(r *http.Request, field string, limits Limits) ([]*UploadedFile, error) {
	headers, err := u.headers(r, field)
	if err != nil || len(headers) == 0 {
		return nil, err
	}

	cfg := u.merge(limits)
	files := make([]*UploadedFile, 0, len(headers))
	var total int64
	for _, header := range headers {
		total += header.Size
		if cfg.MaxTotalSize > 0 && total > cfg.MaxTotalSize {
			return nil, response.PayloadTooLarge(fmt.Sprintf("total upload size of %s exceeds %d bytes", field, cfg.MaxTotalSize))
		}
		file, err := u.accept(field, header, cfg)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func (u *Uploader) headers(r *http.Request, field string) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(MediaType(r), "multipart/form-data") {
		return nil, nil
	}
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(u.config.MaxTotalSize); err != nil {
			if errors.Is(err, http.ErrNotMultipart) {
				return nil, nil
			}
			return nil, response.BadRequest(fmt.Sprintf("invalid multipart form: %v", err))
		}
	}
	return r.MultipartForm.File[field], nil
}

func (u *Uploader) merge(limits Limits) UploadConfig {
	cfg := u.config
	if limits.MaxFileSize > 0 {
		cfg.MaxFileSize = limits.MaxFileSize
	}
	if len(limits.AllowedTypes) > 0 {
		cfg.AllowedTypes = limits.AllowedTypes
	}
	if len(limits.AllowedExts) > 0 {
		cfg.AllowedExts = limits.AllowedExts
	}
	return cfg
}

func (u *Uploader) accept(field string, header *multipart.FileHeader, cfg UploadConfig) (*UploadedFile, error) {
	contentType, err := validate(header, cfg)
	if err != nil {
		return nil, err
	}

	file := &UploadedFile{
		Field:       field,
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: contentType,
		header:      header,
	}
	if cfg.Dir != "" {
		path, err := save(header, cfg)
		if err != nil {
			return nil, fmt.Errorf("save upload %s: %w", header.Filename, err)
		}
		file.Path = path
	}
	return file, nil
}

// validate checks size, extension and sniffed content type, returning the latter
func validate(header *multipart.FileHeader, cfg UploadConfig) (string, error) {
	if cfg.MaxFileSize > 0 && header.Size > cfg.MaxFileSize {
		return "", response.PayloadTooLarge(fmt.Sprintf("file %s exceeds %d bytes", header.Filename, cfg.MaxFileSize))
	}
	if header.Size == 0 {
		return "", response.BadRequest(fmt.Sprintf("file %s is empty", header.Filename))
	}

	if len(cfg.AllowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, candidate := range cfg.AllowedExts {
			if ext == strings.ToLower(candidate) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", response.UnsupportedMediaType(fmt.Sprintf("file extension %s not allowed", ext))
		}
	}

	contentType := header.Header.Get("Content-Type")
	if len(cfg.AllowedTypes) == 0 {
		return contentType, nil
	}

	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload for validation: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read upload for validation: %w", err)
	}
	detected := http.DetectContentType(buf[:n])
	for _, allowed := range cfg.AllowedTypes {
		if detected == allowed || strings.HasPrefix(detected, allowed) {
			return detected, nil
		}
	}
	return "", response.UnsupportedMediaType(fmt.Sprintf("file content type %s not allowed", detected))
}

func save(header *multipart.FileHeader, cfg UploadConfig) (string, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return "", err
	}

	name := header.Filename
	if cfg.GenerateNames {
		name = uniqueName(name)
	}
	dest := filepath.Join(cfg.Dir, filepath.Base(name))

	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func uniqueName(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)

	random := make([]byte, 8)
	_, _ = rand.Read(random)
	return fmt.Sprintf("%s_%d_%s%s", base, time.Now().UnixNano(), hex.EncodeToString(random), ext)
}
