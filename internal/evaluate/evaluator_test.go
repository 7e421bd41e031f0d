package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"audiolevel/internal/models"
)

func TestScorePeakSafety_PenalizesAboveCeiling(t *testing.T) {
	safe := scorePeakSafety(-1.0)
	unsafe := scorePeakSafety(0.2)

	assert.Greater(t, safe, unsafe)
	assert.LessOrEqual(t, unsafe, 50.0)
}

func TestScoreLoudness_ExactTargetScoresMax(t *testing.T) {
	assert.Equal(t, 100.0, scoreLoudness(-16, -16))
}

func TestScoreDynamicRange_ConservativeHasHigherIdeal(t *testing.T) {
	conservative := scoreDynamicRange(13, models.Conservative)
	balanced := scoreDynamicRange(13, models.Balanced)

	assert.Equal(t, 100.0, conservative)
	assert.Less(t, balanced, conservative)
}

func TestSelectWinner_FallsBackToConservativeWhenAllFailSafety(t *testing.T) {
	e := &Evaluator{}
	byID := map[string]models.ProcessingCandidate{
		"cons": {ID: "cons", Aggressiveness: models.Conservative},
		"bal":  {ID: "bal", Aggressiveness: models.Balanced},
	}
	scores := []models.EvaluationScore{
		{CandidateID: "bal", TotalScore: 90, PassedSafety: false},
		{CandidateID: "cons", TotalScore: 40, PassedSafety: false},
	}

	winner := e.selectWinner(scores, byID)

	assert.Equal(t, "cons", winner, "conservative must win when every candidate fails the safety veto, regardless of score")
}

func TestSelectWinner_TieBreakFavorsConservativeWithinMargin(t *testing.T) {
	e := &Evaluator{}
	byID := map[string]models.ProcessingCandidate{
		"cons": {ID: "cons", Aggressiveness: models.Conservative},
		"bal":  {ID: "bal", Aggressiveness: models.Balanced},
	}
	scores := []models.EvaluationScore{
		{CandidateID: "bal", TotalScore: 80, PassedSafety: true},
		{CandidateID: "cons", TotalScore: 77, PassedSafety: true}, // within 5% margin of 80
	}

	winner := e.selectWinner(scores, byID)

	assert.Equal(t, "cons", winner)
}

func TestSelectWinner_PicksHighestScoreOutsideMargin(t *testing.T) {
	e := &Evaluator{}
	byID := map[string]models.ProcessingCandidate{
		"cons": {ID: "cons", Aggressiveness: models.Conservative},
		"bal":  {ID: "bal", Aggressiveness: models.Balanced},
	}
	scores := []models.EvaluationScore{
		{CandidateID: "bal", TotalScore: 95, PassedSafety: true},
		{CandidateID: "cons", TotalScore: 50, PassedSafety: true},
	}

	winner := e.selectWinner(scores, byID)

	assert.Equal(t, "bal", winner)
}
