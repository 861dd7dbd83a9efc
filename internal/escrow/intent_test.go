package escrow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentArgsAreCanonical(t *testing.T) {
	a := NewIntent(OpIncreaseBounty, "t", "creator", "alice", "amount", "5")
	b := NewIntent(OpIncreaseBounty, "t", "amount", "5", "creator", "alice")
	assert.Equal(t, a, b)
	assert.Equal(t, "amount=5&creator=alice", a.Args)
	assert.Equal(t, "increase_bounty:t?amount=5&creator=alice", a.String())

	assert.Equal(t, "set_paused?paused=true", SetPausedIntent(true).String())
	assert.Equal(t, "complete_task:t", TaskIntent(OpCompleteTask, "t").String())
	assert.Equal(t, "", NewIntent(OpRefund, "t", "dangling").Args)
}

func TestIntentBindsArguments(t *testing.T) {
	const id = "ttttttttttttttttttttttttt"
	assert.NotEqual(t, BountyIntent(OpIncreaseBounty, "c", id, 10), BountyIntent(OpIncreaseBounty, "c", id, 11))
	assert.NotEqual(t, BountyIntent(OpIncreaseBounty, "c", id, 10), BountyIntent(OpDecreaseBounty, "c", id, 10))
	assert.NotEqual(t, AssignContributorIntent(id, "bob"), AssignContributorIntent(id, "eve"))
	assert.NotEqual(t, DisputeIntent("c", id, "late delivery of work"), DisputeIntent("c", id, "wrong delivery of work"))

	assert.Equal(t, "resolution=pay_contributor", ResolveIntent(id, PayContributor{}).Args)
	assert.Equal(t, "resolution=refund_creator", ResolveIntent(id, RefundCreator{}).Args)
	assert.Equal(t, "amount=42&resolution=partial_payment", ResolveIntent(id, PartialPayment{Amount: 42}).Args)
	assert.NotEqual(t, ResolveIntent(id, PartialPayment{Amount: 42}), ResolveIntent(id, PartialPayment{Amount: 43}))

	assert.Equal(t, "admin=a&token=tok", InitializeIntent("a", "tok").Args)
	assert.Equal(t, "code_hash=01"+strings.Repeat("0", 62), UpgradeIntent([32]byte{1}).Args)
}
