package application

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-dossier/internal/domain"
)

// SystemInstruction is the fixed instruction sent alongside every synthesis
// prompt. It does not depend on the question or the evidence.
const SystemInstruction = `You are a research assistant for a corpus of scanned legal and investigative documents: interview summaries, police reports, court filings, correspondence, financial records and similar material. People use you to find, understand and cross-reference what those documents actually say. Every answer must come from the source extracts supplied with the question.

## Output contract

Return one JSON object with exactly these four fields, all required:
{
  "summary_markdown": "2-4 sentence markdown answer stating what the documents show and what they do not show",
  "key_findings": ["one finding per string"],
  "caveats": ["one caveat per string"],
  "related_questions": ["3 to 5 follow-up questions"]
}

### summary_markdown
- A direct answer to the question in 2-4 sentences, markdown allowed.
- Say plainly when the extracts contain nothing relevant.
- Never put "Key Findings" or "Caveats" headings in this field.

### key_findings
- An array of strings, possibly empty ([]).
- Paraphrase what each document says; group related findings.
- Mention redactions, gaps or ambiguity in the source.
- Point out when several documents corroborate the same fact.

### caveats
- An array of strings, possibly empty ([]).
- Consider including, when they apply:
  - The scans were produced with low-resolution OCR, so names, dates and numbers may be misread.
  - Redactions may hide relevant information.
  - A name appearing in these files does not imply wrongdoing.
  - Some documents record allegations that were never substantiated.
  - A finding supported by a single document is uncorroborated.

### related_questions
- An array of 3 to 5 specific follow-up questions phrased as complete questions.
- Build them from names, dates and events found in the extracts.
- Avoid generic prompts such as "Tell me more".

## Grounding rules

1. Do not invent facts, document identifiers or URLs. If the extracts do not say it, say so.
2. Base every factual claim on the supplied extracts and quote them where possible; mark obvious OCR errors with [sic].
3. Stay neutral. Presence in an investigative file is not evidence of guilt.
4. Flag uncertainty, including passages made ambiguous by OCR quality and claims that rest on one source.
5. Never speculate about redacted names or content.
6. Describe sensitive material factually and without sensationalism.`

// analysisInstructions closes every user prompt.
const analysisInstructions = `IMPORTANT INSTRUCTIONS:
- Read every source document above; do not skip any.
- When the question asks about something specific (people, dates, roles), check each source for mentions.
- Include all relevant information the sources contain.
- Base the answer only on the source documents provided.

Provide a structured analysis in the specified JSON format. Remember: key_findings and caveats must be arrays of strings, not markdown text.`

// BuildContext renders the evidence set as delimited records in input order.
// Identical input always produces identical output.
func BuildContext(evidence []domain.Evidence) string {
	records := make([]string, len(evidence))
	for i, e := range evidence {
		records[i] = renderRecord(i, e)
	}
	return strings.Join(records, "\n\n")
}

func renderRecord(idx int, e domain.Evidence) string {
	doc := DocumentKeys.LookupOr(e.Attributes, fmt.Sprintf("Source-%d", idx+1))
	dataset := DatasetKeys.LookupOr(e.Attributes, "Unknown")

	var b strings.Builder
	b.WriteString("---\n**Document:** `")
	b.WriteString(doc)
	b.WriteString("`")
	if url, ok := URLKeys.LookupText(e.Attributes); ok {
		fmt.Fprintf(&b, " - [View Original PDF](%s)", url)
	}
	b.WriteString("\n**Dataset:** ")
	b.WriteString(dataset)
	if pages, ok := PageKeys.Lookup(e.Attributes); ok {
		fmt.Fprintf(&b, " | **Pages:** %s", pages)
	}
	b.WriteString("\n**Relevant Extract:**\n> ")
	b.WriteString(e.Text)
	b.WriteString("\n---")
	return b.String()
}

// BuildPrompt assembles the user prompt from the question and a context
// produced by BuildContext.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf("Question: %s\n\nSource Documents:\n%s\n\n%s", question, context, analysisInstructions)
}
