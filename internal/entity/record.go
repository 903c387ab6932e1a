package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Scalar is a free-form form value. Strings, numbers and booleans decode
// into their text; null decodes to "". Scalars encode as JSON strings.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*s = Scalar(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("scalar: %w", err)
		}
		*s = Scalar(n.String())
	}
	return nil
}

func (s Scalar) String() string { return string(s) }

// Float parses the value as a number; free-form text is allowed, so callers
// must handle ok == false.
func (s Scalar) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(s), 64)
	return f, err == nil
}

// LineItem is one row of the shipment items table.
type LineItem struct {
	Description Scalar `json:"description"`
	Quantity    Scalar `json:"quantity"`
	Weight      Scalar `json:"weight"`
	Value       Scalar `json:"value"`
}

// StructuredRecord is the extraction result for a shipment document.
type StructuredRecord struct {
	ShipmentID      Scalar     `json:"shipment_id"`
	ShipmentDate    Scalar     `json:"shipment_date"`
	SenderName      Scalar     `json:"sender_name"`
	SenderAddress   Scalar     `json:"sender_address"`
	ReceiverName    Scalar     `json:"receiver_name"`
	ReceiverAddress Scalar     `json:"receiver_address"`
	TotalWeight     Scalar     `json:"total_weight"`
	TotalValue      Scalar     `json:"total_value"`
	Items           []LineItem `json:"items"`
}

// MarshalJSON always writes items as an array, never null.
func (r StructuredRecord) MarshalJSON() ([]byte, error) {
	type plain StructuredRecord
	p := plain(r)
	if p.Items == nil {
		p.Items = []LineItem{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy.
func (r StructuredRecord) Clone() StructuredRecord {
	out := r
	if r.Items != nil {
		out.Items = make([]LineItem, len(r.Items))
		copy(out.Items, r.Items)
	}
	return out
}
