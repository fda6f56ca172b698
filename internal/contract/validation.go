// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/bulkload/internal/errors"
)

const (
	// DefaultMaxUploadBytes is the largest file accepted by default.
	DefaultMaxUploadBytes = 50 << 20 // 50 MiB

	// UploadField is the multipart form field carrying the file.
	UploadField = "file"
)

// Accepted file extensions. Legacy .xls is accepted here and rejected with
// a clearer message by the parser.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// Accepted declared content types.
var allowedContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// MaxUploadBytes returns the effective upload size limit.
// Controlled via env BULKLOAD_MAX_UPLOAD_BYTES; falls back to DefaultMaxUploadBytes.
func MaxUploadBytes() int64 {
	if v := os.Getenv("BULKLOAD_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxUploadBytes
}

// AllowedExtensions returns the accepted extensions, sorted.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// AcceptsType reports whether a file is accepted by extension or by its
// declared content type.
func AcceptsType(name, contentType string) bool {
	if allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && allowedContentTypes[mt] {
		return true
	}
	return false
}

// ValidateUpload checks a file's name, declared content type and size
// against the contract. size < 0 means unknown and skips the size check.
func ValidateUpload(name, contentType string, size int64) error {
	if name == "" && size == 0 {
		return errors.NewUploadRejected(
			"No file uploaded",
			fmt.Sprintf("The request has no %q form field", UploadField),
			fmt.Sprintf("Send the file as multipart form field %q", UploadField),
			http.StatusBadRequest,
		)
	}

	if !AcceptsType(name, contentType) {
		return errors.NewUploadRejected(
			fmt.Sprintf("Unsupported file %s", name),
			fmt.Sprintf("Type %q with extension %q is not accepted", contentType, filepath.Ext(name)),
			fmt.Sprintf("Upload one of: %s", strings.Join(AllowedExtensions(), ", ")),
			http.StatusUnsupportedMediaType,
		)
	}

	if size > MaxUploadBytes() {
		return TooLarge(name, size)
	}

	if size == 0 {
		return errors.NewUploadRejected(
			fmt.Sprintf("File %s is empty", name),
			"The uploaded file has no content",
			"Upload a file with a header row and at least one data row",
			http.StatusBadRequest,
		)
	}
	return nil
}

// TooLarge is the rejection for a file over MaxUploadBytes. size may be a
// lower bound when the body was cut off while reading.
func TooLarge(name string, size int64) error {
	what := "The request body"
	if name != "" {
		what = "File " + name
	}
	return errors.NewUploadRejected(
		what+" is too large",
		fmt.Sprintf("Received at least %d bytes; the limit is %d bytes", size, MaxUploadBytes()),
		"Split the file into smaller uploads",
		http.StatusRequestEntityTooLarge,
	)
}
