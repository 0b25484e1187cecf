package engine

import (
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// SenderAddress returns the address inside angle brackets when raw has one,
// and the trimmed string otherwise. Case is preserved.
func SenderAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	open := strings.Index(raw, "<")
	if open < 0 {
		return raw
	}
	end := strings.Index(raw[open:], ">")
	if end <= 1 {
		return raw
	}
	return strings.TrimSpace(raw[open+1 : open+end])
}

// attachmentSet is a message's attachments split by kind.
type attachmentSet struct {
	documents []model.Attachment
	archives  []model.Attachment
	others    []model.Attachment
}

func classifyMessage(msg model.InboundMessage) attachmentSet {
	var set attachmentSet
	for _, a := range msg.Attachments {
		a.Kind = model.AttachmentKindOf(a.Filename)
		switch a.Kind {
		case model.KindDocument:
			set.documents = append(set.documents, a)
		case model.KindArchive:
			set.archives = append(set.archives, a)
		default:
			set.others = append(set.others, a)
		}
	}
	return set
}

func filenames(attachments []model.Attachment) []string {
	names := make([]string, len(attachments))
	for i, a := range attachments {
		names[i] = a.Filename
	}
	return names
}
