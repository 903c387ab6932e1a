package constants

// UploadStatus is the state of the upload queue.
type UploadStatus string

const (
	UploadStatusIdle      UploadStatus = "IDLE"      // nothing in flight
	UploadStatusUploading UploadStatus = "UPLOADING" // batch request in flight
)
