package escrow

import "strings"

// Address identifies an account or contract. Account addresses that sign
// requests are the lowercase hex encoding of an ed25519 public key.
type Address string

func (a Address) String() string { return string(a) }

// Status of a task escrow.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDisputed   Status = "disputed"
	StatusResolved   Status = "resolved"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusDisputed, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// TaskEscrow is the custody record for one task bounty.
type TaskEscrow struct {
	TaskID       string   `json:"task_id"`
	IssueURL     string   `json:"issue_url"`
	Creator      Address  `json:"creator"`
	Contributor  *Address `json:"contributor,omitempty"`
	BountyAmount int64    `json:"bounty_amount"`
	Status       Status   `json:"status"`
	CreatedAt    uint64   `json:"created_at"`
	CompletedAt  uint64   `json:"completed_at,omitempty"`
	DisputedAt   uint64   `json:"disputed_at,omitempty"`
}

// HasContributor reports whether a contributor has been assigned.
func (e *TaskEscrow) HasContributor() bool { return e.Contributor != nil }

// Clone returns a deep copy.
func (e *TaskEscrow) Clone() *TaskEscrow {
	cp := *e
	if e.Contributor != nil {
		c := *e.Contributor
		cp.Contributor = &c
	}
	return &cp
}

// DisputeInfo is created the first time a task is disputed.
type DisputeInfo struct {
	TaskID         string  `json:"task_id"`
	DisputingParty Address `json:"disputing_party"`
	Reason         string  `json:"reason"`
	InitiatedAt    uint64  `json:"initiated_at"`
}

// State is the instance-scope configuration, one per deployment.
type State struct {
	Admin     Address `json:"admin"`
	Token     Address `json:"token"`
	TaskCount uint64  `json:"task_count"`
	Paused    bool    `json:"paused"`
	CodeHash  string  `json:"code_hash,omitempty"`
}

// Resolution is the admin's decision on a disputed task. The set of
// implementations is closed: PayContributor, RefundCreator, PartialPayment.
type Resolution interface {
	resolution()
	Name() string
}

// PayContributor releases the full bounty to the contributor.
type PayContributor struct{}

// RefundCreator returns the full bounty to the creator.
type RefundCreator struct{}

// PartialPayment pays Amount to the contributor and the remainder to the creator.
type PartialPayment struct {
	Amount int64
}

func (PayContributor) resolution() {}
func (RefundCreator) resolution()  {}
func (PartialPayment) resolution() {}

func (PayContributor) Name() string { return "pay_contributor" }
func (RefundCreator) Name() string  { return "refund_creator" }
func (PartialPayment) Name() string { return "partial_payment" }

// ParseResolution maps a wire name (and amount for partial payments) to a Resolution.
func ParseResolution(name string, amount int64) (Resolution, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pay_contributor":
		return PayContributor{}, true
	case "refund_creator":
		return RefundCreator{}, true
	case "partial_payment":
		return PartialPayment{Amount: amount}, true
	}
	return nil, false
}
