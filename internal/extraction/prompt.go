package extraction

import (
	"fmt"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

const extractionInstruction = `Extract structured clinical trial information from the following text.
Return a JSON object with the following fields:
- title: Study title
- participants: Number and demographics of participants
- study_type: Type of clinical trial (Phase I/II/III, randomized, etc.)
- endpoints: Primary and secondary endpoints
- methodology: Study design and methodology
- results_summary: Key findings and results
- adverse_events: Safety data and adverse events
- statistical_analysis: Statistical methods and significance

Omit any field that is not present in the text. Return only valid JSON without
any additional text or formatting.`

func buildPrompt(chunk trial.TextChunk) string {
	return fmt.Sprintf("%s\n\nText to analyze:\n%s", extractionInstruction, chunk.Text)
}
