package escrow

import (
	"errors"
	"fmt"
)

// Error is a coded escrow failure. The numeric values are stable and are
// exposed to API clients.
type Error uint32

const (
	ErrTaskNotFound           Error = 1
	ErrTaskAlreadyExists      Error = 2
	ErrInvalidTaskStatus      Error = 3
	ErrContractNotInitialized Error = 4
	ErrAlreadyInitialized     Error = 5

	ErrUnauthorized             Error = 10
	ErrNotTaskCreator           Error = 11
	ErrNotTaskContributor       Error = 12
	ErrNotAdmin                 Error = 13
	ErrOnlyCreatorOrContributor Error = 14
	ErrSignatureReused          Error = 15

	ErrContributorAlreadyAssigned  Error = 20
	ErrNoContributorAssigned       Error = 21
	ErrInsufficientBalance         Error = 22
	ErrTaskNotCompleted            Error = 23
	ErrTaskNotDisputed             Error = 24
	ErrTaskAlreadyResolved         Error = 25
	ErrCannotRefundWithContributor Error = 26

	ErrTokenTransferFailed Error = 30
	ErrInvalidTokenAmount  Error = 31
	ErrTokenContractNotSet Error = 32

	ErrInvalidTaskID           Error = 40
	ErrInvalidAddress          Error = 41
	ErrInvalidAmount           Error = 42
	ErrInvalidDisputeReason    Error = 43
	ErrEmptyTaskID             Error = 44
	ErrTaskIDTooShort          Error = 45
	ErrTaskIDTooLong           Error = 46
	ErrInvalidTaskIDCharacters Error = 47
	ErrAmountTooSmall          Error = 48
	ErrDisputeReasonTooShort   Error = 49
	ErrInvalidIssueURL         Error = 50
	ErrContractPaused          Error = 51
	ErrInvalidResolution       Error = 52
)

var errorText = map[Error]string{
	ErrTaskNotFound:           "task not found",
	ErrTaskAlreadyExists:      "task already exists",
	ErrInvalidTaskStatus:      "invalid task status",
	ErrContractNotInitialized: "contract not initialized",
	ErrAlreadyInitialized:     "contract already initialized",

	ErrUnauthorized:             "unauthorized",
	ErrNotTaskCreator:           "caller is not the task creator",
	ErrNotTaskContributor:       "caller is not the task contributor",
	ErrNotAdmin:                 "caller is not the admin",
	ErrOnlyCreatorOrContributor: "only the creator or contributor may do this",
	ErrSignatureReused:          "signature already used",

	ErrContributorAlreadyAssigned:  "contributor already assigned",
	ErrNoContributorAssigned:       "no contributor assigned",
	ErrInsufficientBalance:         "insufficient balance",
	ErrTaskNotCompleted:            "task not completed",
	ErrTaskNotDisputed:             "task not disputed",
	ErrTaskAlreadyResolved:         "task already resolved",
	ErrCannotRefundWithContributor: "cannot refund with contributor assigned",

	ErrTokenTransferFailed: "token transfer failed",
	ErrInvalidTokenAmount:  "invalid token amount",
	ErrTokenContractNotSet: "token contract not set",

	ErrInvalidTaskID:           "invalid task id",
	ErrInvalidAddress:          "invalid address",
	ErrInvalidAmount:           "invalid amount",
	ErrInvalidDisputeReason:    "invalid dispute reason",
	ErrEmptyTaskID:             "empty task id",
	ErrTaskIDTooShort:          "task id too short",
	ErrTaskIDTooLong:           "task id too long",
	ErrInvalidTaskIDCharacters: "invalid task id characters",
	ErrAmountTooSmall:          "amount too small",
	ErrDisputeReasonTooShort:   "dispute reason too short",
	ErrInvalidIssueURL:         "invalid issue url",
	ErrContractPaused:          "contract paused",
	ErrInvalidResolution:       "invalid dispute resolution",
}

func (e Error) Error() string {
	if s, ok := errorText[e]; ok {
		return s
	}
	return fmt.Sprintf("escrow error %d", uint32(e))
}

// Code returns the stable numeric code.
func (e Error) Code() uint32 { return uint32(e) }

// Is lets ErrAlreadyInitialized also match ErrTaskAlreadyExists, the code
// older clients expect from a repeated initialize.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return e == t || (e == ErrAlreadyInitialized && t == ErrTaskAlreadyExists)
}

// Kind groups error codes for callers that map them to transport statuses.
type Kind int

const (
	KindUnknown Kind = iota
	KindState
	KindAuthorization
	KindBusiness
	KindToken
	KindValidation
	KindOperational
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindBusiness:
		return "business"
	case KindToken:
		return "token"
	case KindValidation:
		return "validation"
	case KindOperational:
		return "operational"
	}
	return "unknown"
}

// Kind returns the error's group.
func (e Error) Kind() Kind {
	switch {
	case e == ErrContractNotInitialized || e == ErrContractPaused:
		return KindOperational
	case e >= 1 && e < 10:
		return KindState
	case e >= 10 && e < 20:
		return KindAuthorization
	case e >= 20 && e < 30:
		return KindBusiness
	case e >= 30 && e < 40:
		return KindToken
	case e >= 40 && e < 60:
		return KindValidation
	}
	return KindUnknown
}

// AsError extracts the escrow Error from err's chain.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return 0, false
}
