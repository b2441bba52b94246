package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterKindAnyMatchesEverything(t *testing.T) {
	f := Filter{Kind: KindAny}

	assert.True(t, f.Matches(NewMint(testPrincipal(1), 1, 1)))
	assert.True(t, f.Matches(NewTransfer(testPrincipal(1), testPrincipal(2), 1, 1)))
	assert.True(t, f.Matches(NewBurn(testPrincipal(1), 1, 1)))
}

func TestFilterKindOnly(t *testing.T) {
	f := Filter{Kind: KindBurn}

	assert.True(t, f.Matches(NewBurn(testPrincipal(1), 1, 1)))
	assert.False(t, f.Matches(NewMint(testPrincipal(1), 1, 1)))
	assert.False(t, f.Matches(NewTransfer(testPrincipal(1), testPrincipal(2), 1, 1)))
}

func TestFilterFieldConstraints(t *testing.T) {
	tracked := testPrincipal(7)
	other := testPrincipal(8)

	fromTracked := Filter{Kind: KindTransfer, From: &tracked}
	assert.True(t, fromTracked.Matches(NewTransfer(tracked, other, 1, 1)))
	assert.False(t, fromTracked.Matches(NewTransfer(other, tracked, 1, 1)))

	toTracked := Filter{Kind: KindTransfer, To: &tracked}
	assert.True(t, toTracked.Matches(NewTransfer(other, tracked, 1, 1)))
	assert.False(t, toTracked.Matches(NewTransfer(tracked, other, 1, 1)))

	// 多个约束是与关系
	both := Filter{Kind: KindTransfer, From: &tracked, To: &other}
	assert.True(t, both.Matches(NewTransfer(tracked, other, 1, 1)))
	assert.False(t, both.Matches(NewTransfer(tracked, tracked, 1, 1)))
}

func TestFilterMintBurnIdentifyingFields(t *testing.T) {
	tracked := testPrincipal(3)
	other := testPrincipal(4)

	mintTo := Filter{Kind: KindMint, To: &tracked}
	assert.True(t, mintTo.Matches(NewMint(tracked, 1, 1)))
	assert.False(t, mintTo.Matches(NewMint(other, 1, 1)))

	burnFrom := Filter{Kind: KindBurn, From: &tracked}
	assert.True(t, burnFrom.Matches(NewBurn(tracked, 1, 1)))
	assert.False(t, burnFrom.Matches(NewBurn(other, 1, 1)))
}
