package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(userID string, score float64) ScoredEntry {
	return ScoredEntry{
		UserMetrics:      UserMetrics{UserID: userID},
		PerformanceScore: Score(score),
	}
}

func TestRank_DescendingDenseRanks(t *testing.T) {
	r := NewRanker()

	ranked := r.Rank([]ScoredEntry{
		scored("u1", 10.0),
		scored("u2", 55.5),
		scored("u3", 31.2),
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "u2", ranked[0].UserID)
	assert.Equal(t, Rank(1), ranked[0].Rank)
	assert.Equal(t, "u3", ranked[1].UserID)
	assert.Equal(t, Rank(2), ranked[1].Rank)
	assert.Equal(t, "u1", ranked[2].UserID)
	assert.Equal(t, Rank(3), ranked[2].Rank)
}

func TestRank_ContiguousNoGapsNoDuplicates(t *testing.T) {
	r := NewRanker()

	entries := []ScoredEntry{
		scored("e", 12.0),
		scored("a", 12.0),
		scored("c", 90.1),
		scored("b", 0.0),
		scored("d", 45.0),
	}

	ranked := r.Rank(entries)

	seen := make(map[Rank]bool)
	for i, e := range ranked {
		assert.Equal(t, Rank(i+1), e.Rank)
		assert.False(t, seen[e.Rank])
		seen[e.Rank] = true
		if i > 0 {
			assert.LessOrEqual(t, float64(e.PerformanceScore), float64(ranked[i-1].PerformanceScore))
		}
	}
}

func TestRank_TieBreakByUserID(t *testing.T) {
	r := NewRanker()

	// Одинаковый балл: детерминированный порядок по UserID по возрастанию,
	// независимо от порядка входа.
	first := r.Rank([]ScoredEntry{scored("zed", 50.0), scored("abe", 50.0)})
	second := r.Rank([]ScoredEntry{scored("abe", 50.0), scored("zed", 50.0)})

	require.Len(t, first, 2)
	assert.Equal(t, "abe", first[0].UserID)
	assert.Equal(t, Rank(1), first[0].Rank)
	assert.Equal(t, "zed", first[1].UserID)
	assert.Equal(t, Rank(2), first[1].Rank)

	assert.Equal(t, first[0].UserID, second[0].UserID)
	assert.Equal(t, first[1].UserID, second[1].UserID)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	r := NewRanker()

	entries := []ScoredEntry{scored("b", 1.0), scored("a", 2.0)}
	_ = r.Rank(entries)

	assert.Equal(t, "b", entries[0].UserID)
	assert.Equal(t, "a", entries[1].UserID)
}

func TestTruncate_AfterFullRanking(t *testing.T) {
	r := NewRanker()

	ranked := r.Rank([]ScoredEntry{
		scored("u1", 10.0),
		scored("u2", 70.0),
		scored("u3", 40.0),
		scored("u4", 90.0),
	})

	top2 := r.Truncate(ranked, 2)
	require.Len(t, top2, 2)
	// Ранги отражают позицию в полной области, не в обрезанном списке.
	assert.Equal(t, "u4", top2[0].UserID)
	assert.Equal(t, Rank(1), top2[0].Rank)
	assert.Equal(t, "u2", top2[1].UserID)
	assert.Equal(t, Rank(2), top2[1].Rank)
}

func TestTruncate_LimitLargerThanSet(t *testing.T) {
	r := NewRanker()

	ranked := r.Rank([]ScoredEntry{scored("u1", 10.0)})
	assert.Len(t, r.Truncate(ranked, 50), 1)
	assert.Len(t, r.Truncate(ranked, 0), 1)
}
