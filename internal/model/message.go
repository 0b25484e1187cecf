package model

import (
	"path/filepath"
	"strings"
)

// AttachmentKind is the coarse classification of an attachment by file type.
type AttachmentKind string

// Attachment kinds.
const (
	KindDocument AttachmentKind = "document"
	KindArchive  AttachmentKind = "archive"
	KindOther    AttachmentKind = "other"
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

var archiveExtensions = map[string]bool{
	".zip": true,
	".rar": true,
	".7z":  true,
	".tar": true,
	".gz":  true,
	".tgz": true,
}

// AttachmentKindOf tags a file by its extension.
func AttachmentKindOf(filename string) AttachmentKind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case documentExtensions[ext]:
		return KindDocument
	case archiveExtensions[ext]:
		return KindArchive
	default:
		return KindOther
	}
}

// Attachment is a file that arrived with an inbound message.
type Attachment struct {
	Filename string
	Path     string // local path after download
	Kind     AttachmentKind
}

// InboundMessage is an unread message fetched from the transport.
type InboundMessage struct {
	ID          string
	ThreadID    string
	Sender      string // raw display string, e.g. "Name <addr@host>"
	Subject     string
	Snippet     string
	Attachments []Attachment
}

// ExtractedFields is what the extraction service read out of one document.
// Identifiers are in confidence order and may contain duplicates.
type ExtractedFields struct {
	Identifiers    []string
	Amounts        []float64
	Issuers        []string
	Clients        []string
	TaxIDs         []string
	ContactNote    string
	ContactChanged bool
}

// Empty reports whether nothing useful was extracted.
func (f ExtractedFields) Empty() bool {
	return len(f.Identifiers) == 0 && !f.ContactChanged
}
