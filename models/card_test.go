package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	card := Card{Status: StatusPending}

	require.NoError(t, card.Transition(StatusApproved))
	require.NotNil(t, card.ApprovedAt)

	require.NoError(t, card.Transition(StatusGenerated))
	require.NotNil(t, card.GeneratedAt)

	require.NoError(t, card.Transition(StatusPublished))
	assert.Equal(t, StatusPublished, card.Status)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	cases := []struct {
		from CardStatus
		to   CardStatus
	}{
		{StatusPending, StatusGenerated},
		{StatusPending, StatusPublished},
		{StatusPending, StatusNeedsReview},
		{StatusApproved, StatusPublished},
		{StatusGenerated, StatusApproved},
		{StatusPublished, StatusPending},
		{StatusNeedsReview, StatusApproved},
	}
	for _, tc := range cases {
		card := Card{Status: tc.from}
		err := card.Transition(tc.to)
		assert.Error(t, err, "%s -> %s must be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, card.Status, "status must stay unchanged after rejection")
	}
}

func TestTransitionNeedsReviewOnlyFromApproved(t *testing.T) {
	card := Card{Status: StatusApproved}
	require.NoError(t, card.Transition(StatusNeedsReview))
	assert.Equal(t, StatusNeedsReview, card.Status)
}

func TestDedupKeyIgnoresCaseAndWhitespace(t *testing.T) {
	a := Card{Category: CategoryPopup, Title: "  Seongsu Pop-up Week  "}
	b := Card{Category: CategoryPopup, Title: "seongsu pop-up week"}
	c := Card{Category: CategoryHotspot, Title: "seongsu pop-up week"}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey(), "same title in another category is a different card")
}

func TestPrimaryDomain(t *testing.T) {
	card := Card{Sources: []CardSource{{URL: "https://www.Seoul.go.kr/news/123?utm_source=x"}}}
	assert.Equal(t, "seoul.go.kr", card.PrimaryDomain())

	empty := Card{}
	assert.Equal(t, "", empty.PrimaryDomain())
}

func TestNewCardIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewCardID(CategoryNewsIssue)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
