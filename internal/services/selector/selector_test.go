package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/models"
)

func cand(seq, conf int, rr float64) models.Candidate {
	return models.Candidate{
		Seq: seq,
		Signal: models.Signal{
			Key:        fmt.Sprintf("S%d", seq),
			Setup:      string(models.StrategyTrend),
			Confidence: conf,
			RiskReward: rr,
		},
	}
}

func keys(ss []models.Signal) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Key
	}
	return out
}

func TestSelect_RanksAndCaps(t *testing.T) {
	t.Parallel()

	cands := make([]models.Candidate, 0, 20)
	for i := 0; i < 20; i++ {
		cands = append(cands, cand(i, 7, 2.5))
	}
	cands[5].Signal.Confidence = 9
	cands[12].Signal.Confidence = 8

	out := Select(cands, Options{MinConfidence: 6, MinRiskReward: 2, MaxSignals: 15})
	require.Len(t, out, 15)
	assert.Equal(t, "S5", out[0].Key)
	assert.Equal(t, "S12", out[1].Key)
	// remaining ties keep arrival order
	assert.Equal(t, "S0", out[2].Key)
	assert.Equal(t, "S1", out[3].Key)
}

func TestSelect_RiskRewardBreaksConfidenceTies(t *testing.T) {
	t.Parallel()

	out := Select([]models.Candidate{
		cand(0, 8, 2.1),
		cand(1, 8, 3.4),
		cand(2, 9, 2.0),
	}, Options{MinConfidence: 6, MinRiskReward: 2})

	assert.Equal(t, []string{"S2", "S1", "S0"}, keys(out))
}

func TestSelect_Filters(t *testing.T) {
	t.Parallel()

	scalp := cand(3, 6, 2.0)
	scalp.Signal.Setup = string(models.StrategyScalping)

	out := Select([]models.Candidate{
		cand(0, 5, 3.0), // confidence too low
		cand(1, 7, 1.9), // rr too low
		cand(2, 6, 2.0),
		scalp, // scalping needs 7
	}, Options{
		MinConfidence:       6,
		MinRiskReward:       2,
		FamilyMinConfidence: map[string]int{string(models.StrategyScalping): 7},
	})

	assert.Equal(t, []string{"S2"}, keys(out))
}

func TestSelect_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Select(nil, Options{MaxSignals: 15}))
}
