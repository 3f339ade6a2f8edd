package types

import (
	"fmt"
	"strconv"
	"strings"

	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/samber/lo"
)

// ApprovalStatus is the payment provider's view of whether the payment cleared
type ApprovalStatus string

const (
	ApprovalStatusPending     ApprovalStatus = "pending"
	ApprovalStatusProcessing  ApprovalStatus = "processing"
	ApprovalStatusApproved    ApprovalStatus = "approved"
	ApprovalStatusRejected    ApprovalStatus = "rejected"
	ApprovalStatusCancelled   ApprovalStatus = "cancelled"
	ApprovalStatusRefunded    ApprovalStatus = "refunded"
	ApprovalStatusChargedBack ApprovalStatus = "charged_back"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

func (s ApprovalStatus) Validate() error {
	allowed := []ApprovalStatus{
		ApprovalStatusPending,
		ApprovalStatusProcessing,
		ApprovalStatusApproved,
		ApprovalStatusRejected,
		ApprovalStatusCancelled,
		ApprovalStatusRefunded,
		ApprovalStatusChargedBack,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid approval status").
			WithHintf("Approval status %s is not supported", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminalFailure reports whether the payment ended without clearing
func (s ApprovalStatus) IsTerminalFailure() bool {
	return lo.Contains([]ApprovalStatus{
		ApprovalStatusRejected,
		ApprovalStatusCancelled,
		ApprovalStatusRefunded,
		ApprovalStatusChargedBack,
	}, s)
}

// FulfillmentStatus tracks whether the paid renewal was applied on the panel.
// It is independent from ApprovalStatus.
type FulfillmentStatus string

const (
	FulfillmentStatusNone       FulfillmentStatus = "none"
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusDone       FulfillmentStatus = "done"
	FulfillmentStatusError      FulfillmentStatus = "error"
)

func (s FulfillmentStatus) String() string {
	return string(s)
}

func (s FulfillmentStatus) Validate() error {
	allowed := []FulfillmentStatus{
		FulfillmentStatusNone,
		FulfillmentStatusPending,
		FulfillmentStatusProcessing,
		FulfillmentStatusDone,
		FulfillmentStatusError,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid fulfillment status").
			WithHintf("Fulfillment status %s is not supported", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsLockable reports whether the fulfillment lock may be taken from this state
func (s FulfillmentStatus) IsLockable() bool {
	return s == FulfillmentStatusNone || s == FulfillmentStatusPending
}

// LockableFulfillmentStatuses are the states the fulfillment lock transitions from
var LockableFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusNone,
	FulfillmentStatusPending,
}

// RenewalPhase is what the poll endpoint reports back to the client portal
type RenewalPhase string

const (
	RenewalPhaseAwaitingPayment RenewalPhase = "awaiting_payment"
	RenewalPhasePaymentFailed   RenewalPhase = "payment_failed"
	RenewalPhaseRenewing        RenewalPhase = "renewing"
	RenewalPhaseDone            RenewalPhase = "done"
	RenewalPhaseError           RenewalPhase = "error"
)

func (p RenewalPhase) String() string {
	return string(p)
}

// Period is the renewal length purchased with a payment
type Period string

const (
	PeriodMonthly    Period = "monthly"
	PeriodBimonthly  Period = "bimonthly"
	PeriodQuarterly  Period = "quarterly"
	PeriodSemiannual Period = "semiannual"
	PeriodAnnual     Period = "annual"

	// MaxPeriodMonths caps bare numeric periods
	MaxPeriodMonths = 36
)

var periodMonths = map[Period]int{
	PeriodMonthly:    1,
	PeriodBimonthly:  2,
	PeriodQuarterly:  3,
	PeriodSemiannual: 6,
	PeriodAnnual:     12,
}

// Months converts the period to the month count sent to the panel.
// Named periods and bare month counts ("3") are both accepted.
func (p Period) Months() (int, error) {
	normalized := Period(strings.ToLower(strings.TrimSpace(string(p))))
	if months, ok := periodMonths[normalized]; ok {
		return months, nil
	}

	months, err := strconv.Atoi(string(normalized))
	if err != nil || months <= 0 || months > MaxPeriodMonths {
		return 0, ierr.NewError(fmt.Sprintf("unsupported period %q", string(p))).
			WithHint("The purchased period is not supported").
			Mark(ierr.ErrValidation)
	}
	return months, nil
}
