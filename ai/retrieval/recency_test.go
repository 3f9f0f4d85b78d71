package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boostTestRetriever() *Retriever {
	return NewRetriever(&fakeSearcher{}, &fakeEmbedder{dims: 4}, DefaultConfig(), WithClock(fixedClock(testNow)))
}

func TestApplyRecencyBoost_Tiers(t *testing.T) {
	r := boostTestRetriever()
	tests := []struct {
		name      string
		age       time.Duration
		wantBoost float32
	}{
		{name: "three days old", age: 3 * 24 * time.Hour, wantBoost: 1.2},
		{name: "exactly seven days", age: 7 * 24 * time.Hour, wantBoost: 1.2},
		{name: "twenty days old", age: 20 * 24 * time.Hour, wantBoost: 1.1},
		{name: "exactly thirty days", age: 30 * 24 * time.Hour, wantBoost: 1.1},
		{name: "forty five days old", age: 45 * 24 * time.Hour, wantBoost: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := []Document{{ID: "d", Score: 0.5, Timestamp: testNow.Add(-tt.age)}}
			r.applyRecencyBoost(docs, testNow)
			assert.InDelta(t, tt.wantBoost, docs[0].TimeBoost, 1e-6)
			assert.InDelta(t, 0.5*tt.wantBoost, docs[0].Score, 1e-6)
		})
	}
}

func TestApplyRecencyBoost_ZeroTimestampKeptUnboosted(t *testing.T) {
	r := boostTestRetriever()
	docs := []Document{
		{ID: "dated", Score: 0.5, Timestamp: testNow.Add(-2 * 24 * time.Hour)},
		{ID: "undated", Score: 0.55},
	}

	r.applyRecencyBoost(docs, testNow)

	require.Len(t, docs, 2)
	assert.Equal(t, "dated", docs[0].ID, "boosted recent doc overtakes the undated one")
	assert.InDelta(t, 0.6, docs[0].Score, 1e-6)
	assert.InDelta(t, 0.55, docs[1].Score, 1e-6, "undated doc keeps its raw score")
	assert.Zero(t, docs[1].TimeBoost)
}

func TestApplyRecencyBoost_ResortsAfterBoost(t *testing.T) {
	r := boostTestRetriever()
	docs := []Document{
		{ID: "stale", Score: 0.6, Timestamp: testNow.AddDate(0, -3, 0)},
		{ID: "fresh", Score: 0.55, Timestamp: testNow.Add(-24 * time.Hour)},
	}

	r.applyRecencyBoost(docs, testNow)

	assert.Equal(t, "fresh", docs[0].ID)
	assert.Equal(t, "stale", docs[1].ID)
}

func TestApplyRecencyBoost_NewerNeverScoresLower(t *testing.T) {
	r := boostTestRetriever()
	ages := []time.Duration{
		24 * time.Hour,
		10 * 24 * time.Hour,
		40 * 24 * time.Hour,
		365 * 24 * time.Hour,
	}

	var prev float32 = 2.0
	for _, age := range ages {
		docs := []Document{{ID: "d", Score: 0.5, Timestamp: testNow.Add(-age)}}
		r.applyRecencyBoost(docs, testNow)
		assert.LessOrEqual(t, docs[0].Score, prev, "age %s", age)
		prev = docs[0].Score
	}
}
