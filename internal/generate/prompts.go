package generate

import "fmt"

const answerPromptFormat = `Based on the following context, provide a comprehensive answer to the query.

Query: %s

Context:
%s

Instructions:
- Provide a direct, factual answer based only on the provided context
- Include specific numbers, dates, and details when available
- If sources conflict, mention both perspectives
- Maintain numeric fidelity (include units)
- If confidence is low, state "Not enough evidence"

Answer:`

func answerPrompt(query, context string) string {
	return fmt.Sprintf(answerPromptFormat, query, context)
}

const sectionPromptFormat = `Based on the following context, %s

Query: %s

Context:
%s

%s:`

func sectionPrompt(name, query, context, style, length string) string {
	return fmt.Sprintf(sectionPromptFormat, sectionInstruction(name, style, length), query, context, name)
}

// sectionInstruction returns the writing instruction for a named report
// section. Unknown section names get a generic instruction.
func sectionInstruction(name, style, length string) string {
	switch name {
	case "Executive Summary":
		return fmt.Sprintf(`Write a %s executive summary (150-200 words) that:
- Provides high-level overview of key findings
- Uses %s tone
- Focuses on business impact and implications`, length, style)
	case "Key Findings":
		return fmt.Sprintf(`List the key findings in bullet format:
- Extract 5-8 most important facts
- Include specific numbers and metrics
- Use %s tone`, style)
	case "Risks & Mitigations":
		return fmt.Sprintf(`Identify risks and mitigation strategies:
- List potential risks mentioned in the context
- Suggest practical mitigation approaches
- Use %s tone`, style)
	case "Recommendations":
		return fmt.Sprintf(`Provide actionable recommendations:
- List 3-5 specific next steps
- Base on evidence from context
- Use %s tone`, style)
	default:
		return fmt.Sprintf("Write a %s section based on the context using %s tone.", name, style)
	}
}
