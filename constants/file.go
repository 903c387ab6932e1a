package constants

import (
	"path/filepath"
	"strings"
)

// MIME types the client knows how to upload and preview.
const (
	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedExtensions holds the file extensions accepted by the upload queue.
var AllowedExtensions = map[string]string{
	"pdf":  MimePDF,
	"xlsx": MimeXLSX,
}

// AllowedMimeTypes holds the MIME types accepted by the upload queue.
var AllowedMimeTypes = map[string]struct{}{
	MimePDF:  {},
	MimeXLSX: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeFromName returns the accepted MIME type for a filename, or "" when the
// extension is not one we upload.
func MimeFromName(name string) string {
	return AllowedExtensions[NormalizeExt(filepath.Ext(name))]
}

// NormalizeMime picks the MIME type an accepted file is queued with: the
// extension's type when the name has one we upload, else the declared type
// lowercased.
func NormalizeMime(name, mimeType string) string {
	if m := MimeFromName(name); m != "" {
		return m
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// DeclaredTypeForStored infers the declared type of a file stored by the
// backend: ".pdf" is PDF, anything else is assumed to be a spreadsheet.
func DeclaredTypeForStored(filename string) string {
	if strings.HasSuffix(filename, ".pdf") {
		return MimePDF
	}
	return MimeXLSX
}

// Accepted reports whether a file passes the drop filter, by MIME type or by extension.
func Accepted(name, mimeType string) bool {
	if _, ok := AllowedMimeTypes[strings.ToLower(strings.TrimSpace(mimeType))]; ok {
		return true
	}
	return MimeFromName(name) != ""
}
