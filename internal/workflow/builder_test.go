package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/errors"
)

func TestBuilder_Defaults(t *testing.T) {
	plan, err := NewBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, allAnalysts, plan.Analysts())
	assert.Equal(t, 2, plan.MaxDebateRounds())
	assert.Equal(t, 2, plan.MaxRiskRounds())
	assert.Equal(t, StageMarketAnalyst, plan.Entry())
}

func TestBuilder_DepthTable(t *testing.T) {
	tests := []struct {
		depth      int
		wantDebate int
		wantRisk   int
	}{
		{depth: 1, wantDebate: 1, wantRisk: 1},
		{depth: 2, wantDebate: 1, wantRisk: 1},
		{depth: 3, wantDebate: 2, wantRisk: 2},
		{depth: 4, wantDebate: 3, wantRisk: 2},
		{depth: 5, wantDebate: 3, wantRisk: 3},
	}

	for _, tt := range tests {
		plan, err := NewBuilder().WithDepth(tt.depth).Build()
		require.NoError(t, err, "depth %d", tt.depth)
		assert.Equal(t, tt.wantDebate, plan.MaxDebateRounds(), "debate rounds at depth %d", tt.depth)
		assert.Equal(t, tt.wantRisk, plan.MaxRiskRounds(), "risk rounds at depth %d", tt.depth)
	}
}

func TestBuilder_TotalStages(t *testing.T) {
	// 4 analysts + 2*2 debate + manager + trader + 3*2 risk + risk manager
	plan, err := NewBuilder().WithDepth(3).Build()
	require.NoError(t, err)
	assert.Equal(t, 4+4+1+1+6+1, plan.TotalStages())

	// Single analyst at the shallowest depth.
	plan, err = NewBuilder().WithAnalysts([]string{"market"}).WithDepth(1).Build()
	require.NoError(t, err)
	assert.Equal(t, 1+2+1+1+3+1, plan.TotalStages())
}

func TestBuilder_AnalystSubsetKeepsOrder(t *testing.T) {
	plan, err := NewBuilder().WithAnalysts([]string{"news", "market"}).Build()
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageNewsAnalyst, StageMarketAnalyst}, plan.Analysts())
	assert.Equal(t, StageNewsAnalyst, plan.Entry())
}

func TestBuilder_RejectsInvalidInput(t *testing.T) {
	_, err := NewBuilder().WithAnalysts(nil).Build()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewBuilder().WithDepth(0).Build()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewBuilder().WithDepth(6).Build()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewBuilder().WithAnalysts([]string{"market", "quant"}).Build()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewBuilder().WithAnalysts([]string{"market", "market"}).Build()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
