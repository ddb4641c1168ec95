package analysis

// Result is the structured scoring of one resume. Array fields may be empty but are never null.
type Result struct {
	Score                   int      `json:"score" validate:"min=0,max=100"`
	Recommendations         []string `json:"recommendations" validate:"dive,required"`
	SkillGaps               []string `json:"skillGaps" validate:"dive,required"`
	ATSTips                 []string `json:"atsTips" validate:"dive,required"`
	JobMatches              []string `json:"jobMatches" validate:"dive,required"`
	ProfessionalDevelopment []string `json:"professionalDevelopment" validate:"dive,required"`
}

// Usage is the metered cost of one analysis call.
type Usage struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	TotalTokens  int     `json:"totalTokens"`
	Cost         float64 `json:"cost"`
}

// Outcome is what a successful Analyze returns.
type Outcome struct {
	Result Result `json:"analysis"`
	Usage  Usage  `json:"usage"`
}
