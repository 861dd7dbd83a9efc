package escrow

import (
	"encoding/hex"
	"net/url"
	"strconv"
)

// Intent is what a caller's signature authorizes: one operation on one task
// with exactly the given arguments. Admin operations carry an empty TaskID.
// Args is the canonical form-encoding of the call's arguments, keys sorted.
type Intent struct {
	Op     string
	TaskID string
	Args   string
}

func (i Intent) String() string {
	s := i.Op
	if i.TaskID != "" {
		s += ":" + i.TaskID
	}
	if i.Args != "" {
		s += "?" + i.Args
	}
	return s
}

// NewIntent builds an intent from key/value argument pairs. A trailing key
// without a value is ignored.
func NewIntent(op, taskID string, kv ...string) Intent {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return Intent{Op: op, TaskID: taskID, Args: v.Encode()}
}

func amountArg(amount int64) string { return strconv.FormatInt(amount, 10) }

func CreateEscrowIntent(creator Address, taskID, issueURL string, amount int64) Intent {
	return NewIntent(OpCreateEscrow, taskID, "creator", string(creator), "issue_url", issueURL, "amount", amountArg(amount))
}

func AssignContributorIntent(taskID string, contributor Address) Intent {
	return NewIntent(OpAssignContributor, taskID, "contributor", string(contributor))
}

// TaskIntent covers the argument-free task calls: complete, approve, refund.
func TaskIntent(op, taskID string) Intent {
	return NewIntent(op, taskID)
}

// BountyIntent covers increase_bounty and decrease_bounty.
func BountyIntent(op string, creator Address, taskID string, amount int64) Intent {
	return NewIntent(op, taskID, "creator", string(creator), "amount", amountArg(amount))
}

func DisputeIntent(party Address, taskID, reason string) Intent {
	return NewIntent(OpDisputeTask, taskID, "party", string(party), "reason", reason)
}

func ResolveIntent(taskID string, res Resolution) Intent {
	if res == nil {
		return NewIntent(OpResolveDispute, taskID)
	}
	if p, ok := res.(PartialPayment); ok {
		return NewIntent(OpResolveDispute, taskID, "resolution", p.Name(), "amount", amountArg(p.Amount))
	}
	return NewIntent(OpResolveDispute, taskID, "resolution", res.Name())
}

func InitializeIntent(admin, token Address) Intent {
	return NewIntent(OpInitialize, "", "admin", string(admin), "token", string(token))
}

func SetAdminIntent(newAdmin Address) Intent {
	return NewIntent(OpSetAdmin, "", "admin", string(newAdmin))
}

func UpdateTokenIntent(token Address) Intent {
	return NewIntent(OpUpdateToken, "", "token", string(token))
}

func SetPausedIntent(paused bool) Intent {
	return NewIntent(OpSetPaused, "", "paused", strconv.FormatBool(paused))
}

func UpgradeIntent(codeHash [32]byte) Intent {
	return NewIntent(OpUpgrade, "", "code_hash", hex.EncodeToString(codeHash[:]))
}
