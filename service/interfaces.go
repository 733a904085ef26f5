package service

import (
	"context"
	"time"

	"lbx/events"
	"lbx/models"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for wallet and ledger data access.
// Every mutation changes the balance and appends its ledger entry in one atomic step.
type AccountRepository interface {
	// GetOrCreate returns the account, creating it with a zero balance if absent
	GetOrCreate(ctx context.Context, username string) (*models.Account, error)

	// ApplyDelta adds entry.Delta to the balance and appends entry to the ledger.
	// With requireNonNegative the update only happens when the resulting balance
	// stays >= 0, otherwise ErrInsufficientFunds is returned and nothing changes.
	ApplyDelta(ctx context.Context, username string, entry models.LedgerEntry, requireNonNegative bool) (*models.Account, error)

	// GrantSignupBonus sets the grant timestamp to entry.Timestamp, applies the delta and
	// appends entry, conditional on the timestamp being absent. granted is false and the
	// current account is returned when the bonus was already granted.
	GrantSignupBonus(ctx context.Context, username string, entry models.LedgerEntry) (account *models.Account, granted bool, err error)

	// Ledger returns up to limit entries, most recent first
	Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error)

	// SumDeltasSince sums deltas of entries at or after since whose reason starts with reasonPrefix
	SumDeltasSince(ctx context.Context, username string, since time.Time, reasonPrefix string) (int64, error)
}

// JackpotRepository defines the interface for monthly jackpot period data access
type JackpotRepository interface {
	// GetOrCreate returns the period for month, creating an empty one if absent
	GetOrCreate(ctx context.Context, month string) (*models.JackpotPeriod, error)

	// AddExtra adds delta to the period's extra, clamped so it never drops below zero
	AddExtra(ctx context.Context, month string, delta decimal.Decimal) (*models.JackpotPeriod, error)

	// Reset sets the period's override start to at and its extra to zero
	Reset(ctx context.Context, month string, at time.Time) (*models.JackpotPeriod, error)
}

// PromoRepository defines the interface for promo code and redemption data access
type PromoRepository interface {
	// Create inserts a new code, returning ErrDuplicateCode if it already exists
	Create(ctx context.Context, code *models.PromoCode) error

	// Get retrieves a code, returning nil if not found
	Get(ctx context.Context, code string) (*models.PromoCode, error)

	// List returns codes newest first, optionally filtered by active state
	List(ctx context.Context, active *bool, limit int) ([]*models.PromoCode, error)

	// Disable marks a code inactive, returning nil if not found
	Disable(ctx context.Context, code string) (*models.PromoCode, error)

	// CountRedemptions counts redemptions of code by username
	CountRedemptions(ctx context.Context, code, username string) (int, error)

	// InsertRedemption records a redemption, returning ErrAlreadyRedeemed when
	// the (code, username, seq) triple already exists
	InsertRedemption(ctx context.Context, redemption *models.PromoRedemption) error

	// DeleteRedemption removes a redemption by ID
	DeleteRedemption(ctx context.Context, id string) error

	// IncrementRedeemed increments the redeemed count only while it is below the maximum.
	// It returns false when the code is already depleted.
	IncrementRedeemed(ctx context.Context, code string) (bool, error)

	// DecrementRedeemed undoes one increment, never going below zero
	DecrementRedeemed(ctx context.Context, code string) error

	// RedemptionsByUser returns the most recent redemptions of an account
	RedemptionsByUser(ctx context.Context, username string, limit int) ([]*models.PromoRedemption, error)
}

// StreamEventRepository defines the interface for ingested provider event data access
type StreamEventRepository interface {
	// Record stores the event if (provider, eventId) is new. It returns the stored
	// event and whether this call created it.
	Record(ctx context.Context, event *models.StreamEvent) (*models.StreamEvent, bool, error)

	// Claim marks the event applied only if it is not yet applied. Exactly one of
	// any number of concurrent callers gets true.
	Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error)

	// Release clears a claim so a later delivery can apply the event
	Release(ctx context.Context, provider, eventID string) error

	// Recent returns the most recently received events
	Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error)
}

// EventRulesRepository defines the interface for the stored provider reward table
type EventRulesRepository interface {
	// Get returns the stored rules, or nil when none have been saved
	Get(ctx context.Context) (*models.EventRules, error)

	// Save replaces the stored rules
	Save(ctx context.Context, rules *models.EventRules) error
}

// RechargeOrderRepository defines the interface for recharge order data access
type RechargeOrderRepository interface {
	// Create inserts a new order
	Create(ctx context.Context, order *models.RechargeOrder) error

	// Get retrieves an order, returning nil if not found
	Get(ctx context.Context, id string) (*models.RechargeOrder, error)

	// List returns orders newest first. An empty status or username matches all.
	List(ctx context.Context, status models.OrderStatus, username string, limit int) ([]*models.RechargeOrder, error)

	// SumAmountsSince sums the amounts of the account's orders created at or after
	// since whose status is one of statuses
	SumAmountsSince(ctx context.Context, username string, since time.Time, statuses []models.OrderStatus) (int64, error)

	// Decide moves an order from status from to decision.Status. It returns nil when the
	// order is missing or no longer in from. A zero decision.At clears the decision time.
	Decide(ctx context.Context, id string, from models.OrderStatus, decision models.OrderDecision) (*models.RechargeOrder, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// BalancePolicy states whether a balance may go negative
type BalancePolicy int

const (
	// AllowNegative applies the delta unconditionally (admin adjustments, rewards)
	AllowNegative BalancePolicy = iota
	// RequireNonNegative rejects deltas that would drive the balance below zero
	RequireNonNegative
)

// SignupBonusResult is the outcome of a signup bonus grant attempt
type SignupBonusResult struct {
	Granted bool  `json:"granted"`
	Balance int64 `json:"balance"`
}

// CapResult is the outcome of a cap-limited credit
type CapResult struct {
	Applied int64 `json:"applied"`
	Capped  bool  `json:"capped"`
	Used    int64 `json:"used"`
	Cap     int64 `json:"cap"`
	Balance int64 `json:"balance"`
}

// WalletService defines the interface for wallet operations
type WalletService interface {
	// GetBalance returns the account balance, creating the account if needed
	GetBalance(ctx context.Context, username string) (int64, error)

	// Adjust applies a signed delta under the given policy and returns the new balance.
	// A zero delta returns the current balance without writing a ledger entry.
	Adjust(ctx context.Context, username string, delta int64, reason string, policy BalancePolicy) (int64, error)

	// Credit adds a positive amount unconditionally
	Credit(ctx context.Context, username string, amount int64, reason string) (int64, error)

	// Debit subtracts a positive amount, failing with ErrInsufficientFunds
	Debit(ctx context.Context, username string, amount int64, reason string) (int64, error)

	// GrantSignupBonusIfNeeded credits the configured bonus at most once per account
	GrantSignupBonusIfNeeded(ctx context.Context, username string) (*SignupBonusResult, error)

	// SumCreditedInWindow sums ledger deltas since windowStart matching reasonPrefix
	SumCreditedInWindow(ctx context.Context, username string, windowStart time.Time, reasonPrefix string) (int64, error)

	// ApplyWithCap credits as much of requested as fits under the rolling window cap
	ApplyWithCap(ctx context.Context, username string, requested, capPerWindow int64, reason string) (*CapResult, error)

	// Ledger returns the most recent ledger entries of an account
	Ledger(ctx context.Context, username string, limit int) ([]*models.LedgerEntry, error)
}

// JackpotDebug exposes the stored period next to its computed reading
type JackpotDebug struct {
	Now     time.Time              `json:"now"`
	Period  *models.JackpotPeriod  `json:"period"`
	Reading *models.JackpotReading `json:"reading"`
}

// JackpotService defines the interface for monthly jackpot operations
type JackpotService interface {
	// Read computes the current period's value at now
	Read(ctx context.Context, now time.Time) (*models.JackpotReading, error)

	// Contribute adds a positive amount to the current period's extra
	Contribute(ctx context.Context, amount decimal.Decimal) (*models.JackpotReading, error)

	// Adjust applies a signed non-zero admin delta to the extra, clamped at zero
	Adjust(ctx context.Context, delta decimal.Decimal, reason string) (*models.JackpotReading, error)

	// Reset restarts proration from now and clears the extra
	Reset(ctx context.Context) (*models.JackpotReading, error)

	// Debug returns the raw current period alongside its reading at now
	Debug(ctx context.Context, now time.Time) (*JackpotDebug, error)
}

// CreatePromoInput holds the fields of a new promo code
type CreatePromoInput struct {
	Code           string
	Amount         int64
	MaxRedemptions int
	PerUserLimit   int
	ExpiresAt      *time.Time
	CreatedBy      string
	Notes          string
}

// GeneratePromoInput holds the fields of a batch of generated promo codes
type GeneratePromoInput struct {
	Prefix         string
	Count          int
	Amount         int64
	MaxRedemptions int
	PerUserLimit   int
	ExpiresAt      *time.Time
	CreatedBy      string
	Notes          string
}

// RedeemResult is the outcome of a successful redemption
type RedeemResult struct {
	Code    string `json:"code"`
	Applied int64  `json:"applied"`
	Balance int64  `json:"balance"`
}

// PromoService defines the interface for promo code operations
type PromoService interface {
	// CreateCode creates a single promo code, generating one when Code is empty
	CreateCode(ctx context.Context, in CreatePromoInput) (*models.PromoCode, error)

	// GenerateCodes creates a batch of codes sharing amount and limits
	GenerateCodes(ctx context.Context, in GeneratePromoInput) ([]*models.PromoCode, error)

	// ListCodes lists codes, optionally only active or inactive ones
	ListCodes(ctx context.Context, active *bool) ([]*models.PromoCode, error)

	// DisableCode permanently deactivates a code
	DisableCode(ctx context.Context, code string) (*models.PromoCode, error)

	// Redeem validates, reserves and credits a code for an account
	Redeem(ctx context.Context, username, code string) (*RedeemResult, error)

	// RedemptionsFor lists the most recent redemptions of an account
	RedemptionsFor(ctx context.Context, username string) ([]*models.PromoRedemption, error)
}

// IngestEventInput is a provider event as received from the hook
type IngestEventInput struct {
	Provider   string
	EventID    string
	Type       models.StreamEventType
	Username   string
	Quantity   int
	Recipients []string
	OccurredAt time.Time
}

// CreditOutcome is the capped credit result for one account
type CreditOutcome struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
	*CapResult
}

// IngestResult is the outcome of ingesting a provider event
type IngestResult struct {
	Idempotent bool                   `json:"idempotent"`
	Credits    []CreditOutcome        `json:"credits"`
	Jackpot    *models.JackpotReading `json:"jackpot,omitempty"`
}

// EventRulesPatch holds the reward table fields an admin wants to change. Nil fields keep their value.
type EventRulesPatch struct {
	SubNew           *int64
	SubRenew         *int64
	SubGiftGifterPer *int64
	SubGiftRecipient *int64
	CapPerDay        *int64
	JackpotPerSub    *decimal.Decimal
	UpdatedBy        string
}

// StreamEventService defines the interface for provider event ingestion
type StreamEventService interface {
	// Ingest records the event once and applies its wallet and jackpot rewards
	Ingest(ctx context.Context, in IngestEventInput) (*IngestResult, error)

	// Recent lists recently ingested events
	Recent(ctx context.Context, limit int) ([]*models.StreamEvent, error)

	// Rules returns the reward table in effect, the configured defaults until an admin saves one
	Rules(ctx context.Context) (*models.EventRules, error)

	// UpdateRules merges patch into the current rules and stores the result
	UpdateRules(ctx context.Context, patch EventRulesPatch) (*models.EventRules, error)
}

// PlaceOrderInput holds the fields of a new recharge order
type PlaceOrderInput struct {
	Username string
	Amount   int64
	USD      decimal.Decimal
	Asset    string
	Address  string
	Ref      string
	TxID     string
}

// DecideOrderInput identifies the order an admin approves or rejects
type DecideOrderInput struct {
	ID   string
	By   string
	Note string
	// Force skips the daily cap check on approval
	Force bool
}

// ApproveResult is the outcome of an approved recharge order
type ApproveResult struct {
	Order   *models.RechargeOrder `json:"order"`
	Balance int64                 `json:"balance"`
}

// RechargeService defines the interface for recharge order operations
type RechargeService interface {
	// Place records a pending order after checking the package and the daily cap,
	// which counts pending and approved orders
	Place(ctx context.Context, in PlaceOrderInput) (*models.RechargeOrder, error)

	// List returns orders, optionally filtered by status and account
	List(ctx context.Context, status models.OrderStatus, username string) ([]*models.RechargeOrder, error)

	// Approve marks a pending order approved and credits the wallet. Unless Force is set
	// the daily cap is checked again against approved orders only.
	Approve(ctx context.Context, in DecideOrderInput) (*ApproveResult, error)

	// Reject marks a pending order rejected
	Reject(ctx context.Context, in DecideOrderInput) (*models.RechargeOrder, error)
}
