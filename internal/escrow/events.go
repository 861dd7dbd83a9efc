package escrow

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Topic names an event stream consumed by indexers.
type Topic string

const (
	TopicEscrowCreated       Topic = "escrow_created"
	TopicContributorAssigned Topic = "contributor_assigned"
	TopicTaskCompleted       Topic = "task_completed"
	TopicFundsReleased       Topic = "funds_released"
	TopicDisputeInitiated    Topic = "dispute_initiated"
	TopicDisputeResolved     Topic = "dispute_resolved"
	TopicRefundProcessed     Topic = "refund_processed"
	TopicBountyIncreased     Topic = "bounty_increased"
	TopicBountyDecreased     Topic = "bounty_decreased"
	TopicContractUpgraded    Topic = "contract_upgraded"
	TopicContractInitialized Topic = "contract_initialized"
	TopicAdminChanged        Topic = "admin_changed"
	TopicTokenUpdated        Topic = "token_updated"
	TopicPauseChanged        Topic = "pause_changed"
)

// Event is one entry of the append-only log. Data is one of the payload
// structs below.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Topic     Topic     `json:"topic"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp uint64    `json:"timestamp"`
	Data      any       `json:"data"`
}

// MarshalData encodes the payload alone.
func (e Event) MarshalData() (json.RawMessage, error) {
	return json.Marshal(e.Data)
}

type EscrowCreated struct {
	TaskID       string  `json:"task_id"`
	Creator      Address `json:"creator"`
	BountyAmount int64   `json:"bounty_amount"`
	Timestamp    uint64  `json:"timestamp"`
}

type ContributorAssigned struct {
	TaskID      string  `json:"task_id"`
	Contributor Address `json:"contributor"`
	Timestamp   uint64  `json:"timestamp"`
}

type TaskCompleted struct {
	TaskID      string  `json:"task_id"`
	Contributor Address `json:"contributor"`
	Timestamp   uint64  `json:"timestamp"`
}

type FundsReleased struct {
	TaskID      string  `json:"task_id"`
	Contributor Address `json:"contributor"`
	Amount      int64   `json:"amount"`
	Timestamp   uint64  `json:"timestamp"`
}

type DisputeInitiated struct {
	TaskID         string  `json:"task_id"`
	DisputingParty Address `json:"disputing_party"`
	Reason         string  `json:"reason"`
	Timestamp      uint64  `json:"timestamp"`
}

type DisputeResolved struct {
	TaskID            string  `json:"task_id"`
	Resolution        string  `json:"resolution"`
	ContributorAmount int64   `json:"contributor_amount"`
	CreatorAmount     int64   `json:"creator_amount"`
	ResolvedBy        Address `json:"resolved_by"`
	Timestamp         uint64  `json:"timestamp"`
}

type RefundProcessed struct {
	TaskID    string  `json:"task_id"`
	Creator   Address `json:"creator"`
	Amount    int64   `json:"amount"`
	Timestamp uint64  `json:"timestamp"`
}

type BountyChanged struct {
	TaskID    string `json:"task_id"`
	Delta     int64  `json:"delta"`
	NewAmount int64  `json:"new_amount"`
	Timestamp uint64 `json:"timestamp"`
}

type ContractUpgraded struct {
	CodeHash  string  `json:"code_hash"`
	Admin     Address `json:"admin"`
	Timestamp uint64  `json:"timestamp"`
}

type ContractInitialized struct {
	Admin     Address `json:"admin"`
	Token     Address `json:"token"`
	Timestamp uint64  `json:"timestamp"`
}

type AdminChanged struct {
	OldAdmin  Address `json:"old_admin"`
	NewAdmin  Address `json:"new_admin"`
	Timestamp uint64  `json:"timestamp"`
}

type TokenUpdated struct {
	OldToken  Address `json:"old_token"`
	NewToken  Address `json:"new_token"`
	Admin     Address `json:"admin"`
	Timestamp uint64  `json:"timestamp"`
}

type PauseChanged struct {
	Paused    bool    `json:"paused"`
	Admin     Address `json:"admin"`
	Timestamp uint64  `json:"timestamp"`
}

func newEvent(topic Topic, taskID string, ts uint64, data any) Event {
	return Event{ID: uuid.New(), Topic: topic, TaskID: taskID, Timestamp: ts, Data: data}
}
