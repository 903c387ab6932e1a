package viewer

import (
	"strings"

	"github.com/joseph-ayodele/shipment-docs/constants"
)

// Kind is the preview format of a file, decided once when its descriptor is built.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindSpreadsheet
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// Descriptor is a file the viewer can show. Exactly one of URL and Content
// is set.
type Descriptor struct {
	Name         string
	URL          string
	Content      []byte
	DeclaredType string
	kind         Kind
}

// NewURLDescriptor describes a file stored by the backend.
func NewURLDescriptor(name, url, declaredType string) Descriptor {
	return Descriptor{Name: name, URL: url, DeclaredType: declaredType, kind: classify(name, declaredType)}
}

// NewMemoryDescriptor describes a file whose bytes are held locally, such as
// a freshly uploaded one.
func NewMemoryDescriptor(name string, content []byte, declaredType string) Descriptor {
	return Descriptor{Name: name, Content: content, DeclaredType: declaredType, kind: classify(name, declaredType)}
}

func (d Descriptor) Kind() Kind { return d.kind }

// InMemory reports whether the bytes are held locally.
func (d Descriptor) InMemory() bool { return d.URL == "" }

func classify(name, declaredType string) Kind {
	switch {
	case declaredType == constants.MimePDF:
		return KindPDF
	case declaredType == constants.MimeXLSX || strings.HasSuffix(name, ".xlsx"):
		return KindSpreadsheet
	default:
		return KindUnknown
	}
}
