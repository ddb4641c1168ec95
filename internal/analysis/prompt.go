package analysis

import (
	"strings"

	"jobboard-backend/internal/llm"
)

const systemPrompt = "You are a resume analysis engine. Respond with JSON only. No markdown. Never omit keys. Output must match the schema exactly."

const instructions = `Score the resume below from 0 to 100 for overall quality and hiring readiness.
Return one JSON object with exactly these keys:
- "score": integer 0-100
- "recommendations": concrete improvements to the resume
- "skillGaps": skills the candidate should acquire for their apparent target roles
- "atsTips": changes that improve applicant tracking system parsing
- "jobMatches": job titles the resume is a strong fit for
- "professionalDevelopment": courses, certifications or experiences worth pursuing
Every array holds short plain strings and may be empty.

RESUME:
`

// resultSchema mirrors Result so providers can enforce it.
var resultSchema = llm.Schema{
	Name: "resume_analysis",
	Fields: []llm.Field{
		{Name: "score", Type: llm.FieldInteger, Min: llm.Float(0), Max: llm.Float(100)},
		{Name: "recommendations", Type: llm.FieldStringArray},
		{Name: "skillGaps", Type: llm.FieldStringArray},
		{Name: "atsTips", Type: llm.FieldStringArray},
		{Name: "jobMatches", Type: llm.FieldStringArray},
		{Name: "professionalDevelopment", Type: llm.FieldStringArray},
	},
}

// buildRequest renders the single fixed template around the resume text.
func buildRequest(resumeText string) llm.Request {
	var b strings.Builder
	b.Grow(len(instructions) + len(resumeText))
	b.WriteString(instructions)
	b.WriteString(strings.TrimSpace(resumeText))
	return llm.Request{
		System: systemPrompt,
		Prompt: b.String(),
		Schema: &resultSchema,
	}
}
