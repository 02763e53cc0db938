package utils

import (
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxFileSize is 50MB in bytes
	DefaultMaxFileSize = 50 * 1024 * 1024
)

var (
	// MaxFileSize can be overridden from configuration
	MaxFileSize int64 = DefaultMaxFileSize

	// AllowedExtensions are the attachment formats accepted for any slot
	AllowedExtensions = map[string]bool{
		".pdf":  true,
		".doc":  true,
		".docx": true,
		".xls":  true,
		".xlsx": true,
		".csv":  true,
		".dwg":  true,
		".dxf":  true,
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".zip":  true,
		".rar":  true,
		".txt":  true,
	}
)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Field   string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateAttachment validates the uploaded file's size and extension
func ValidateAttachment(field string, fileHeader *multipart.FileHeader) error {
	if fileHeader == nil {
		return &FileUploadError{
			Code:    "FILE_REQUIRED",
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
		}
	}

	if fileHeader.Size <= 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Field:   field,
			Message: fmt.Sprintf("%s is empty", field),
		}
	}

	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Field:   field,
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !AllowedExtensions[ext] {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Field:   field,
			Message: fmt.Sprintf("File type %q is not allowed", ext),
		}
	}

	return nil
}

// SanitizeFilename reduces a client-supplied name to its base name.
// Non-ASCII characters are kept as is.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}

// IsSpreadsheet reports whether name has an Excel workbook extension
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}
