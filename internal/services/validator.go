package services

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationResult contains the results of upload validation
type ValidationResult struct {
	Valid        bool
	DetectedType string // "CSV" or "XLSX"
	Size         int64
	Errors       []string
}

// FileValidator validates uploaded report/statement files before parsing
type FileValidator struct {
	maxSizeBytes int64
}

// xlsxMagicBytes is the ZIP signature (an XLSX file is a ZIP archive)
var xlsxMagicBytes = []byte{0x50, 0x4B, 0x03, 0x04}

// allowedExtensions for report and statement uploads
var allowedExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xls":  true,
}

// NewFileValidator creates a validator with the specified maximum file size
func NewFileValidator(maxSizeBytes int64) *FileValidator {
	return &FileValidator{maxSizeBytes: maxSizeBytes}
}

// ValidateUpload checks filename, size and content shape of an uploaded file
func (v *FileValidator) ValidateUpload(data []byte, filename string) *ValidationResult {
	result := &ValidationResult{
		Valid: true,
		Size:  int64(len(data)),
	}

	if err := v.ValidateFilename(filename); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if len(data) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "file is empty")
		return result
	}

	if result.Size > v.maxSizeBytes {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("file exceeds maximum size of %d bytes", v.maxSizeBytes))
	}

	if bytes.HasPrefix(data, xlsxMagicBytes) {
		result.DetectedType = "XLSX"
	} else {
		result.DetectedType = "CSV"
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if result.DetectedType == "XLSX" && ext == ".csv" {
		result.Valid = false
		result.Errors = append(result.Errors, "file content does not match .csv extension")
	}

	return result
}

// ValidateFilename validates the filename for security issues
func (v *FileValidator) ValidateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename cannot be empty")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return errors.New("filename contains invalid path characters")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("file extension %s is not allowed", ext)
	}
	return nil
}
