package session

import (
	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer"
)

// State is a snapshot of the session. It shares nothing with the live session.
type State struct {
	Documents          []entity.Document
	Selected           *entity.Document
	ViewerFiles        []viewer.Descriptor
	ViewerOpen         bool
	ViewerInitialIndex int
	ViewerIndex        int
	Queue              []entity.UploadedFile
	UploadStatus       constants.UploadStatus
}

// SelectedID returns the selected document id, or "" when nothing is selected.
func (s State) SelectedID() entity.DocumentID {
	if s.Selected == nil {
		return ""
	}
	return s.Selected.ID
}
