package llm

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = "You read invoices for an accounts payable team. Respond with ONLY a JSON object: no markdown, no commentary."

const draftSystemPrompt = "You are a helpful accounts payable assistant writing short, professional emails. Respond with the email body only."

func buildExtractionPrompt(contextText string) string {
	return fmt.Sprintf(`Analyze the attached invoice page images.

CONTEXT FROM THE EMAIL: %q

Extract the invoice number, amount, tax registration number (e.g. GSTIN or VAT id),
issuer name (the hotel or vendor that printed the invoice) and client or workspace
the invoice is billed to.

Guidelines for invoice numbers:
1. Look for labels like "Invoice No", "Bill No", "Folio No".
2. Invoice numbers are usually alphanumeric.
3. Correct obvious OCR font artifacts from the surrounding characters:
   '1' vs 'I', '0' vs 'O', '5' vs 'S', '8' vs 'B'.
4. Otherwise return exactly the characters you see. List the most certain first.

If the document or email says the billing contact has changed, set
"contact_changed" to true and describe the new contact in "new_contact".

Return JSON only:
{
  "identifiers": ["INV-001"],
  "amounts": [1234.50],
  "tax_ids": ["..."],
  "issuers": ["..."],
  "clients": ["..."],
  "contact_changed": false,
  "new_contact": null
}`, contextText)
}

func buildDraftPrompt(sender string, missing, matched []string, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a reply email to %s.\n\n", sender)
	b.WriteString("Scenario:\n")
	fmt.Fprintf(&b, "- We just received these invoices: %s\n", listOrNone(matched))
	fmt.Fprintf(&b, "- We are STILL MISSING these: %s\n", listOrNone(missing))
	if contextText != "" {
		fmt.Fprintf(&b, "- Their messages:\n%s\n", contextText)
	}
	b.WriteString(`
Rules:
1. Thank them for the specific invoices received.
2. Politely ask for the missing ones.
3. Do NOT ask for the ones we already received.
4. Keep it professional.
`)
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
