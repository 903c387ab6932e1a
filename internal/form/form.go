// Package form holds the editable working copy of a document's extracted
// data. It never talks to the backend; saving goes through a callback.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// InputKind is how a field is edited.
type InputKind string

const (
	InputText     InputKind = "text"
	InputDate     InputKind = "date"
	InputNumber   InputKind = "number"
	InputTextarea InputKind = "textarea"
)

// FieldSpec describes one editable field.
type FieldSpec struct {
	Name  string
	Label string
	Input InputKind
	// Section groups fields for display.
	Section string
}

var recordFields = []FieldSpec{
	{Name: "shipment_id", Label: "Shipment ID", Input: InputText, Section: "Shipment Details"},
	{Name: "shipment_date", Label: "Shipment Date", Input: InputDate, Section: "Shipment Details"},
	{Name: "sender_name", Label: "Sender Name", Input: InputText, Section: "Sender Info"},
	{Name: "sender_address", Label: "Sender Address", Input: InputTextarea, Section: "Sender Info"},
	{Name: "receiver_name", Label: "Receiver Name", Input: InputText, Section: "Receiver Info"},
	{Name: "receiver_address", Label: "Receiver Address", Input: InputTextarea, Section: "Receiver Info"},
	{Name: "total_weight", Label: "Total Weight", Input: InputNumber, Section: "Totals"},
	{Name: "total_value", Label: "Total Value", Input: InputNumber, Section: "Totals"},
}

var itemFields = []FieldSpec{
	{Name: "description", Label: "Description", Input: InputText},
	{Name: "quantity", Label: "Quantity", Input: InputNumber},
	{Name: "weight", Label: "Weight", Input: InputNumber},
	{Name: "value", Label: "Value", Input: InputNumber},
}

// Fields lists the scalar fields in display order.
func Fields() []FieldSpec { return append([]FieldSpec(nil), recordFields...) }

// ItemFields lists the line item columns in display order.
func ItemFields() []FieldSpec { return append([]FieldSpec(nil), itemFields...) }

// SaveFunc persists a submitted record for the document the form was loaded with.
type SaveFunc func(ctx context.Context, id entity.DocumentID, record entity.StructuredRecord) error

// Form is the working copy. Safe for concurrent use.
type Form struct {
	onSave SaveFunc

	mu     sync.Mutex
	loaded bool
	docID  entity.DocumentID
	rec    entity.StructuredRecord
}

func New(onSave SaveFunc) *Form {
	return &Form{onSave: onSave}
}

// Load initialises the working copy from record unless the form already
// holds docID, in which case in-progress edits are kept. It reports whether
// the form was reset.
func (f *Form) Load(docID entity.DocumentID, record entity.StructuredRecord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded && f.docID == docID {
		return false
	}
	f.resetLocked(docID, record)
	return true
}

// Reset replaces the working copy unconditionally.
func (f *Form) Reset(docID entity.DocumentID, record entity.StructuredRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked(docID, record)
}

func (f *Form) resetLocked(docID entity.DocumentID, record entity.StructuredRecord) {
	f.loaded = true
	f.docID = docID
	f.rec = record.Clone()
}

// Clear empties the form.
func (f *Form) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	f.docID = ""
	f.rec = entity.StructuredRecord{}
}

// DocID returns the document the form was loaded with.
func (f *Form) DocID() (entity.DocumentID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docID, f.loaded
}

// Fields lists the scalar fields in display order.
func (f *Form) Fields() []FieldSpec { return Fields() }

func (f *Form) Value(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := scalarField(&f.rec, name)
	if p == nil {
		return "", fmt.Errorf("%q: %w", name, common.ErrUnknownField)
	}
	return p.String(), nil
}

func (f *Form) SetValue(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := scalarField(&f.rec, name)
	if p == nil {
		return fmt.Errorf("%q: %w", name, common.ErrUnknownField)
	}
	*p = entity.Scalar(value)
	return nil
}

// AddItem appends a blank line item.
func (f *Form) AddItem() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec.Items = append(f.rec.Items, entity.LineItem{})
}

// RemoveItem deletes row idx; later rows shift down.
func (f *Form) RemoveItem(idx int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= len(f.rec.Items) {
		return fmt.Errorf("item %d of %d: %w", idx, len(f.rec.Items), common.ErrIndexOutOfRange)
	}
	items := make([]entity.LineItem, 0, len(f.rec.Items)-1)
	items = append(items, f.rec.Items[:idx]...)
	f.rec.Items = append(items, f.rec.Items[idx+1:]...)
	return nil
}

// ChangeItem sets one field of one row.
func (f *Form) ChangeItem(idx int, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= len(f.rec.Items) {
		return fmt.Errorf("item %d of %d: %w", idx, len(f.rec.Items), common.ErrIndexOutOfRange)
	}
	p := itemField(&f.rec.Items[idx], field)
	if p == nil {
		return fmt.Errorf("item field %q: %w", field, common.ErrUnknownField)
	}
	*p = entity.Scalar(value)
	return nil
}

func (f *Form) Items() []entity.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.LineItem(nil), f.rec.Items...)
}

// Record gathers every scalar and the current items.
func (f *Form) Record() entity.StructuredRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec.Clone()
}

// Submit hands the current record to the save callback, tagged with the
// document id held at the moment of the call.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if !f.loaded {
		f.mu.Unlock()
		return common.ErrNoSelection
	}
	id, rec := f.docID, f.rec.Clone()
	f.mu.Unlock()
	if f.onSave == nil {
		return errors.New("form has no save handler")
	}
	return f.onSave(ctx, id, rec)
}

// FieldValue reads a scalar field of rec by name.
func FieldValue(rec entity.StructuredRecord, name string) (entity.Scalar, bool) {
	p := scalarField(&rec, name)
	if p == nil {
		return "", false
	}
	return *p, true
}

func scalarField(r *entity.StructuredRecord, name string) *entity.Scalar {
	switch name {
	case "shipment_id":
		return &r.ShipmentID
	case "shipment_date":
		return &r.ShipmentDate
	case "sender_name":
		return &r.SenderName
	case "sender_address":
		return &r.SenderAddress
	case "receiver_name":
		return &r.ReceiverName
	case "receiver_address":
		return &r.ReceiverAddress
	case "total_weight":
		return &r.TotalWeight
	case "total_value":
		return &r.TotalValue
	}
	return nil
}

func itemField(it *entity.LineItem, name string) *entity.Scalar {
	switch name {
	case "description":
		return &it.Description
	case "quantity":
		return &it.Quantity
	case "weight":
		return &it.Weight
	case "value":
		return &it.Value
	}
	return nil
}
