package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

type wireResult struct {
	Score                   *float64 `json:"score"`
	Recommendations         []string `json:"recommendations"`
	SkillGaps               []string `json:"skillGaps"`
	ATSTips                 []string `json:"atsTips"`
	JobMatches              []string `json:"jobMatches"`
	ProfessionalDevelopment []string `json:"professionalDevelopment"`
}

// parseReply decodes the reply strictly, then retries on the widest
// brace-delimited span. fallback reports whether the second attempt was needed.
func parseReply(v *validator.Validate, reply string) (res Result, fallback bool, err error) {
	trimmed := strings.TrimSpace(reply)
	res, strictErr := decode(v, trimmed)
	if strictErr == nil {
		return res, false, nil
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return Result{}, false, fmt.Errorf("%w: %v", ErrParse, strictErr)
	}
	res, err = decode(v, trimmed[start:end+1])
	if err != nil {
		return Result{}, true, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return res, true, nil
}

func decode(v *validator.Validate, payload string) (Result, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Result{}, err
	}
	if w.Score == nil {
		return Result{}, fmt.Errorf("missing score")
	}
	res := Result{
		Score:                   int(math.Round(*w.Score)),
		Recommendations:         nonNil(w.Recommendations),
		SkillGaps:               nonNil(w.SkillGaps),
		ATSTips:                 nonNil(w.ATSTips),
		JobMatches:              nonNil(w.JobMatches),
		ProfessionalDevelopment: nonNil(w.ProfessionalDevelopment),
	}
	if err := v.Struct(res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func nonNil(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
