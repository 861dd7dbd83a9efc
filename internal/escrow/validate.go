package escrow

import (
	"strings"
	"unicode"
)

const (
	TaskIDLength      = 25
	MaxIssueURLLength = 500
	MinAmount         = int64(100_000)
	MaxAmount         = int64(10_000_000_000_000_000)
	MinDisputeReason  = 10
	MaxDisputeReason  = 500
	maxAddressLength  = 128
)

// ValidateTaskID requires a non-empty id of exactly TaskIDLength bytes.
func ValidateTaskID(id string) error {
	if id == "" {
		return ErrEmptyTaskID
	}
	if len(id) != TaskIDLength {
		return ErrInvalidTaskID
	}
	return nil
}

// ValidateIssueURL requires a non-empty url of at most MaxIssueURLLength bytes.
func ValidateIssueURL(url string) error {
	if url == "" || len(url) > MaxIssueURLLength {
		return ErrInvalidIssueURL
	}
	return nil
}

// ValidateAmount checks a bounty-sized amount.
func ValidateAmount(amount int64) error {
	if amount <= 0 || amount < MinAmount {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return ErrInvalidTokenAmount
	}
	return nil
}

// ValidateDisputeReason bounds the reason length.
func ValidateDisputeReason(reason string) error {
	if len(reason) < MinDisputeReason || len(reason) > MaxDisputeReason {
		return ErrInvalidDisputeReason
	}
	return nil
}

// ValidatePartialPayment checks a partial payout against the total bounty.
// Both the contributor's share and the creator's remainder must be at least
// 1% of the total.
func ValidatePartialPayment(partial, total int64) error {
	if err := ValidateAmount(partial); err != nil {
		return err
	}
	if partial > total {
		return ErrInvalidTokenAmount
	}
	floor := total / 100
	if partial < floor || total-partial < floor {
		return ErrInvalidTokenAmount
	}
	return nil
}

// ValidateAddress rejects empty, oversized or whitespace-bearing addresses.
func ValidateAddress(a Address) error {
	if a == "" || len(a) > maxAddressLength {
		return ErrInvalidAddress
	}
	if strings.IndexFunc(string(a), unicode.IsSpace) >= 0 {
		return ErrInvalidAddress
	}
	return nil
}

// addChecked adds two non-negative amounts, failing instead of overflowing.
func addChecked(a, b int64) (int64, error) {
	sum := a + b
	if sum < a || sum < b {
		return 0, ErrInvalidTokenAmount
	}
	return sum, nil
}
