package entity

// UploadedFile is a file waiting in the upload queue.
type UploadedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Content  []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// FileKey is the identity of a queued file.
type FileKey struct {
	Name string
	Size int64
}

// Key returns the dedup identity (name, size).
func (f UploadedFile) Key() FileKey {
	return FileKey{Name: f.Name, Size: f.Size}
}

// SizeMB returns the size in megabytes, as shown in the "selected files" list.
func (f UploadedFile) SizeMB() float64 {
	return float64(f.Size) / 1024 / 1024
}
