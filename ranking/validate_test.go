package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Seednode/ratebox/ranking"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		sub      ranking.Submission
		accepted bool
		fields   []string
	}{
		{
			name:     "Full submission",
			sub:      ranking.Submission{Title: "Chess", Rater: "Ana", Score: 5},
			accepted: true,
		},
		{
			name:     "Lowest score",
			sub:      ranking.Submission{Title: "Go", Rater: "Beto", Score: 1},
			accepted: true,
		},
		{
			name:     "Surrounding whitespace is allowed",
			sub:      ranking.Submission{Title: "  Chess ", Rater: "\tAna", Score: 3},
			accepted: true,
		},
		{
			name:   "Empty title",
			sub:    ranking.Submission{Title: "", Rater: "Ana", Score: 3},
			fields: []string{"title"},
		},
		{
			name:   "Blank rater",
			sub:    ranking.Submission{Title: "Chess", Rater: "   ", Score: 3},
			fields: []string{"rater"},
		},
		{
			name:   "Byte order mark title",
			sub:    ranking.Submission{Title: "\uFEFF", Rater: "Ana", Score: 3},
			fields: []string{"title"},
		},
		{
			name:   "Non-breaking space rater",
			sub:    ranking.Submission{Title: "Chess", Rater: "\u00a0\uFEFF ", Score: 3},
			fields: []string{"rater"},
		},
		{
			name:   "No star selected",
			sub:    ranking.Submission{Title: "Chess", Rater: "Ana"},
			fields: []string{"score"},
		},
		{
			name:   "Score above range",
			sub:    ranking.Submission{Title: "X", Rater: "Y", Score: 6},
			fields: []string{"score"},
		},
		{
			name:   "Negative score",
			sub:    ranking.Submission{Title: "X", Rater: "Y", Score: -2},
			fields: []string{"score"},
		},
		{
			name:   "Everything missing",
			sub:    ranking.Submission{Title: " ", Rater: ""},
			fields: []string{"title", "rater", "score"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			err := ranking.Validate(tc.sub)
			if tc.accepted {
				rq.NoError(err)
				rq.Empty(ranking.FieldErrors(err))

				return
			}

			rq.ErrorIs(err, ranking.ErrInvalidSubmission)

			fields := ranking.FieldErrors(err)
			rq.Len(fields, len(tc.fields))
			for _, f := range tc.fields {
				rq.Contains(fields, f)
			}
		})
	}
}

func TestValidateExhaustiveScores(t *testing.T) {
	rq := require.New(t)

	for score := -3; score <= 10; score++ {
		err := ranking.Validate(ranking.Submission{Title: "Chess", Rater: "Ana", Score: score})
		if score >= ranking.MinScore && score <= ranking.MaxScore {
			rq.NoError(err, "score %d", score)
		} else {
			rq.ErrorIs(err, ranking.ErrInvalidSubmission, "score %d", score)
		}
	}
}
