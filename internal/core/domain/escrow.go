package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Cryptocurrency is a supported settlement currency.
type Cryptocurrency string

const (
	CurrencyBTC  Cryptocurrency = "BTC"
	CurrencyETH  Cryptocurrency = "ETH"
	CurrencyUSDT Cryptocurrency = "USDT"
	CurrencyLTC  Cryptocurrency = "LTC"
	CurrencyXRP  Cryptocurrency = "XRP"
)

// SupportedCurrencies lists every currency the engine settles in.
var SupportedCurrencies = []Cryptocurrency{
	CurrencyBTC, CurrencyETH, CurrencyUSDT, CurrencyLTC, CurrencyXRP,
}

// IsValid reports whether c is a supported currency.
func (c Cryptocurrency) IsValid() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// EscrowStatus is the lifecycle state of an escrow.
type EscrowStatus string

const (
	EscrowStatusCreated   EscrowStatus = "created"
	EscrowStatusFunded    EscrowStatus = "funded"
	EscrowStatusActive    EscrowStatus = "active"
	EscrowStatusDisputed  EscrowStatus = "disputed"
	EscrowStatusCompleted EscrowStatus = "completed"
	EscrowStatusRefunded  EscrowStatus = "refunded"
	EscrowStatusCancelled EscrowStatus = "cancelled"
	EscrowStatusExpired   EscrowStatus = "expired"
)

// escrowTransitions is the authoritative transition table. Any transition not
// listed here is illegal.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusCreated:  {EscrowStatusFunded, EscrowStatusCancelled},
	EscrowStatusFunded:   {EscrowStatusActive, EscrowStatusDisputed, EscrowStatusCompleted, EscrowStatusRefunded, EscrowStatusExpired},
	EscrowStatusActive:   {EscrowStatusDisputed, EscrowStatusCompleted, EscrowStatusRefunded, EscrowStatusExpired},
	EscrowStatusDisputed: {EscrowStatusCompleted, EscrowStatusRefunded},
}

// CanTransition reports whether moving from s to target is legal.
func (s EscrowStatus) CanTransition(target EscrowStatus) bool {
	for _, t := range escrowTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a final state.
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowStatusCompleted, EscrowStatusRefunded, EscrowStatusCancelled, EscrowStatusExpired:
		return true
	}
	return false
}

// ReleaseType controls how escrowed funds are released.
type ReleaseType string

const (
	ReleaseTypeAutomatic      ReleaseType = "automatic"
	ReleaseTypeManual         ReleaseType = "manual"
	ReleaseTypeMilestoneBased ReleaseType = "milestone_based"
	ReleaseTypeTimeBased      ReleaseType = "time_based"
	ReleaseTypeMutual         ReleaseType = "mutual"
)

// MilestoneSumTolerance is the permitted drift between the escrow amount and
// the sum of its milestone amounts.
const MilestoneSumTolerance = 0.01

// HistoryEntry is an immutable audit-trail record appended on every transition.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	Action      string    `json:"action"`
	PerformedBy uuid.UUID `json:"performed_by"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Escrow is the central aggregate: a custodial hold of funds between a buyer
// and a seller, released only through the lifecycle engine. It exclusively owns
// all its child collections.
type Escrow struct {
	ID       uuid.UUID `json:"id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	SellerID uuid.UUID `json:"seller_id"`

	Amount         float64        `json:"amount"`
	Currency       Cryptocurrency `json:"cryptocurrency"`
	AmountUSD      float64        `json:"amount_usd"`
	DepositAddress string         `json:"deposit_address"`
	ReleaseAddress string         `json:"release_address"`
	RefundAddress  string         `json:"refund_address,omitempty"`
	DepositTxHash  string         `json:"deposit_tx_hash,omitempty"`
	ReleaseTxHash  string         `json:"release_tx_hash,omitempty"`
	RefundTxHash   string         `json:"refund_tx_hash,omitempty"`

	Status            EscrowStatus `json:"status"`
	ReleaseType       ReleaseType  `json:"release_type"`
	RequiresMultiSig  bool         `json:"requires_multi_sig"`
	RequiredApprovals int          `json:"required_approvals"`

	Conditions []ReleaseCondition `json:"release_conditions"`
	Milestones []Milestone        `json:"milestones"`
	Disputes   []Dispute          `json:"disputes"`
	Fees       []Fee              `json:"fees"`
	Approvals  []MultiSigApproval `json:"multi_sig_approvals"`
	History    []HistoryEntry     `json:"history"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FundedAt    *time.Time `json:"funded_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Version guards read-modify-write cycles (optimistic concurrency).
	Version int64 `json:"-"`
}

// IsParty reports whether userID is the buyer or the seller.
func (e *Escrow) IsParty(userID uuid.UUID) bool {
	return userID == e.BuyerID || userID == e.SellerID
}

// TotalMilestoneAmount is the sum of all milestone amounts. Derived, never stored.
func (e *Escrow) TotalMilestoneAmount() float64 {
	var total float64
	for _, m := range e.Milestones {
		total += m.Amount
	}
	return total
}

// ValidateMilestoneSum enforces the milestone-sum invariant for
// milestone-based escrows at creation/validation time.
func (e *Escrow) ValidateMilestoneSum() bool {
	if e.ReleaseType != ReleaseTypeMilestoneBased {
		return true
	}
	return math.Abs(e.TotalMilestoneAmount()-e.Amount) <= MilestoneSumTolerance
}

// AllConditionsMet reports whether every release condition is satisfied.
// Vacuously true when there are no conditions.
func (e *Escrow) AllConditionsMet() bool {
	for _, c := range e.Conditions {
		if !c.Met {
			return false
		}
	}
	return true
}

// AllMilestonesDone reports whether every milestone is completed or released.
func (e *Escrow) AllMilestonesDone() bool {
	if len(e.Milestones) == 0 {
		return false
	}
	for _, m := range e.Milestones {
		if m.Status != MilestoneStatusCompleted && m.Status != MilestoneStatusReleased {
			return false
		}
	}
	return true
}

// AllMilestonesReleased reports whether the buyer has released every
// milestone. A merely completed milestone still awaits the buyer's sign-off.
func (e *Escrow) AllMilestonesReleased() bool {
	if len(e.Milestones) == 0 {
		return false
	}
	for _, m := range e.Milestones {
		if m.Status != MilestoneStatusReleased {
			return false
		}
	}
	return true
}

// ActiveDispute returns the open or under-review dispute, if any.
// The invariant is at most one at any time.
func (e *Escrow) ActiveDispute() *Dispute {
	for i := range e.Disputes {
		if e.Disputes[i].Status == DisputeStatusOpen || e.Disputes[i].Status == DisputeStatusUnderReview {
			return &e.Disputes[i]
		}
	}
	return nil
}

// HasActiveDispute is the derived dispute flag.
func (e *Escrow) HasActiveDispute() bool {
	return e.ActiveDispute() != nil
}

// IsExpired reports whether the escrow is past its expiry and not completed.
func (e *Escrow) IsExpired(now time.Time) bool {
	if e.ExpiresAt == nil || e.Status == EscrowStatusCompleted {
		return false
	}
	return now.After(*e.ExpiresAt)
}

// TotalFees is the sum of all fee line items.
func (e *Escrow) TotalFees() float64 {
	var total float64
	for _, f := range e.Fees {
		total += f.Amount
	}
	return total
}

// AppendHistory records a transition in the append-only audit trail.
func (e *Escrow) AppendHistory(action string, performedBy uuid.UUID, details string, at time.Time) {
	e.History = append(e.History, HistoryEntry{
		ID:          uuid.New(),
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
		Timestamp:   at,
	})
}

// FindMilestone returns the milestone with the given ID, or nil.
func (e *Escrow) FindMilestone(id uuid.UUID) *Milestone {
	for i := range e.Milestones {
		if e.Milestones[i].ID == id {
			return &e.Milestones[i]
		}
	}
	return nil
}

// FindDispute returns the dispute with the given ID, or nil.
func (e *Escrow) FindDispute(id uuid.UUID) *Dispute {
	for i := range e.Disputes {
		if e.Disputes[i].ID == id {
			return &e.Disputes[i]
		}
	}
	return nil
}

// FindCondition returns the release condition with the given ID, or nil.
func (e *Escrow) FindCondition(id uuid.UUID) *ReleaseCondition {
	for i := range e.Conditions {
		if e.Conditions[i].ID == id {
			return &e.Conditions[i]
		}
	}
	return nil
}
