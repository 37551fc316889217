package summarize

import (
	"fmt"
	"strings"

	"github.com/sells-group/rfpdesk/internal/model"
)

func systemPrompt(projectType model.ProjectType, maxKeyPoints int) string {
	var focus string
	switch projectType {
	case model.ProjectTypeRFI:
		focus = "The user is answering a Request for Information. Emphasize what the issuer wants to learn, the capabilities they ask about, and response logistics."
	case model.ProjectTypeForm470:
		focus = "The user is responding to an E-Rate FCC Form 470 service request. Emphasize requested services, quantities, sites, installation dates and bid deadlines."
	default:
		focus = "The user is answering a Request for Proposal. Emphasize scope, mandatory requirements, evaluation criteria, deadlines, pricing and deliverables."
	}

	return fmt.Sprintf(`You summarize source material for a team writing a procurement response.
%s

Reply with a single JSON object and nothing else:
{
  "narrative": "3-6 sentence summary",
  "key_points": ["at most %d short, self-contained points"],
  "fields": {
    "scope": "string or empty",
    "requirements": ["list of requirements"],
    "timeline": "dates and milestones or empty",
    "budget": "amounts or empty",
    "deliverables": ["list of deliverables"]
  }
}
Each field may be a string or a list of strings. Leave a field empty when the text says nothing about it. Do not invent facts.`, focus, maxKeyPoints)
}

func userPrompt(label, text string, part, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", label)
	if total > 1 {
		fmt.Fprintf(&b, "This is part %d of %d of the source. Summarize only this part.\n", part, total)
	}
	b.WriteString("\n<source>\n")
	b.WriteString(text)
	b.WriteString("\n</source>")
	return b.String()
}
