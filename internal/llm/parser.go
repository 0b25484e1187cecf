package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

type extractionPayload struct {
	NewContact     json.RawMessage `json:"new_contact"`
	Identifiers    []string        `json:"identifiers"`
	TaxIDs         []string        `json:"tax_ids"`
	Issuers        []string        `json:"issuers"`
	Clients        []string        `json:"clients"`
	Amounts        amountList      `json:"amounts"`
	ContactChanged bool            `json:"contact_changed"`
}

// amountList accepts numbers or formatted strings such as "1,234.50".
type amountList []float64

func (a *amountList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, s)
		if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
			out = append(out, n)
		}
	}
	*a = out
	return nil
}

// cleanMarkdownWrapper strips a ```json fence, or any fence, around a reply.
func cleanMarkdownWrapper(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		text, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(text, "```"); ok {
		text, _, _ = strings.Cut(after, "```")
	}
	return strings.TrimSpace(text)
}

// pythonLiterals rewrites the dict-literal style some models fall back to.
var pythonLiterals = strings.NewReplacer("'", `"`, "True", "true", "False", "false", "None", "null")

func parseExtraction(content string) (model.ExtractedFields, error) {
	content = cleanMarkdownWrapper(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		if relaxedErr := json.Unmarshal([]byte(pythonLiterals.Replace(content)), &payload); relaxedErr != nil {
			return model.ExtractedFields{}, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	fields := model.ExtractedFields{
		Identifiers:    nonEmpty(payload.Identifiers),
		Amounts:        payload.Amounts,
		Issuers:        nonEmpty(payload.Issuers),
		Clients:        nonEmpty(payload.Clients),
		TaxIDs:         nonEmpty(payload.TaxIDs),
		ContactChanged: payload.ContactChanged,
	}
	if payload.ContactChanged {
		fields.ContactNote = contactNote(payload.NewContact)
	}
	return fields, nil
}

func contactNote(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
