package server

import (
	"strings"
	"time"

	"lbx/models"
	"lbx/service"

	"github.com/shopspring/decimal"
)

// accountAmountRequest is the body of admin wallet writes.
// user, username and name name the account; amount and delta carry the value.
type accountAmountRequest struct {
	User     string   `json:"user"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Amount   *float64 `json:"amount"`
	Delta    *float64 `json:"delta"`
	Cap      *float64 `json:"cap"`
	Reason   string   `json:"reason"`
}

func (r accountAmountRequest) account() string {
	return firstNonEmpty(r.Username, r.User, r.Name)
}

// value prefers the primary field and falls back to its alias. A missing value is zero.
func (r accountAmountRequest) value(preferDelta bool) (int64, error) {
	first, second := r.Amount, r.Delta
	if preferDelta {
		first, second = r.Delta, r.Amount
	}
	switch {
	case first != nil:
		return service.ParseAmount(*first)
	case second != nil:
		return service.ParseAmount(*second)
	default:
		return 0, nil
	}
}

type spendRequest struct {
	Amount *float64 `json:"amount"`
	Delta  *float64 `json:"delta"`
	Reason string   `json:"reason"`
}

func (r spendRequest) value() (int64, error) {
	switch {
	case r.Amount != nil:
		return service.ParseAmount(*r.Amount)
	case r.Delta != nil:
		return service.ParseAmount(*r.Delta)
	default:
		return 0, service.ErrInvalidAmount
	}
}

// jackpotAmountRequest accepts the AUD value as amount, delta or deltaAUD
type jackpotAmountRequest struct {
	Amount   decimal.NullDecimal `json:"amount"`
	Delta    decimal.NullDecimal `json:"delta"`
	DeltaAUD decimal.NullDecimal `json:"deltaAUD"`
	Reason   string              `json:"reason"`
}

func (r jackpotAmountRequest) value() decimal.Decimal {
	for _, v := range []decimal.NullDecimal{r.Amount, r.Delta, r.DeltaAUD} {
		if v.Valid {
			return v.Decimal
		}
	}
	return decimal.Zero
}

type loginRequest struct {
	Username string `json:"username"`
	User     string `json:"user"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pass     string `json:"pass"`
}

func (r loginRequest) credentials() (string, string) {
	username := strings.ToLower(strings.TrimSpace(firstNonEmpty(r.Username, r.User, r.Email)))
	password := r.Password
	if password == "" {
		password = r.Pass
	}
	return username, password
}

type createPromoRequest struct {
	Code           string     `json:"code"`
	Amount         float64    `json:"amount"`
	MaxRedemptions *int       `json:"maxRedemptions"`
	PerUserLimit   *int       `json:"perUserLimit"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	Notes          string     `json:"notes"`
}

type generatePromoRequest struct {
	Prefix         string     `json:"prefix"`
	Amount         float64    `json:"amount"`
	Count          *int       `json:"count"`
	MaxRedemptions *int       `json:"maxRedemptions"`
	PerUserLimit   *int       `json:"perUserLimit"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	Notes          string     `json:"notes"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// hookEventRequest is a provider event. id is accepted for event_id and ts is epoch millis.
type hookEventRequest struct {
	Provider   string   `json:"provider"`
	EventID    string   `json:"event_id"`
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	User       string   `json:"user"`
	Quantity   int      `json:"quantity"`
	Recipients []string `json:"recipients"`
	TS         int64    `json:"ts"`
}

func (r hookEventRequest) input(defaultProvider string, now time.Time) service.IngestEventInput {
	provider := strings.ToLower(strings.TrimSpace(r.Provider))
	if provider == "" {
		provider = defaultProvider
	}
	occurredAt := now
	if r.TS > 0 {
		occurredAt = time.UnixMilli(r.TS)
	}
	return service.IngestEventInput{
		Provider:   provider,
		EventID:    firstNonEmpty(r.EventID, r.ID),
		Type:       models.StreamEventType(strings.ToUpper(strings.TrimSpace(r.Type))),
		Username:   r.User,
		Quantity:   r.Quantity,
		Recipients: r.Recipients,
		OccurredAt: occurredAt.UTC(),
	}
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// updateRulesRequest is a partial reward table. Absent fields keep their value.
type updateRulesRequest struct {
	SubNew           *int64              `json:"subNew"`
	SubRenew         *int64              `json:"subRenew"`
	SubGiftGifterPer *int64              `json:"subGiftGifterPer"`
	SubGiftRecipient *int64              `json:"subGiftRecipient"`
	CapPerDay        *int64              `json:"capPerDay"`
	JackpotPerSub    decimal.NullDecimal `json:"jackpotPerSub"`
}

func (r updateRulesRequest) patch(by string) service.EventRulesPatch {
	patch := service.EventRulesPatch{
		SubNew:           r.SubNew,
		SubRenew:         r.SubRenew,
		SubGiftGifterPer: r.SubGiftGifterPer,
		SubGiftRecipient: r.SubGiftRecipient,
		CapPerDay:        r.CapPerDay,
		UpdatedBy:        by,
	}
	if r.JackpotPerSub.Valid {
		jackpot := r.JackpotPerSub.Decimal
		patch.JackpotPerSub = &jackpot
	}
	return patch
}

type placeOrderRequest struct {
	Amount  *float64            `json:"amount"`
	USD     decimal.NullDecimal `json:"usd"`
	Asset   string              `json:"asset"`
	Address string              `json:"address"`
	Ref     string              `json:"ref"`
	TxID    string              `json:"txid"`
}

func (r placeOrderRequest) input(username string) (service.PlaceOrderInput, error) {
	in := service.PlaceOrderInput{
		Username: username,
		USD:      r.USD.Decimal,
		Asset:    r.Asset,
		Address:  r.Address,
		Ref:      r.Ref,
		TxID:     r.TxID,
	}
	if r.Amount != nil {
		amount, err := service.ParseAmount(*r.Amount)
		if err != nil {
			return in, err
		}
		in.Amount = amount
	}
	return in, nil
}

type decideOrderRequest struct {
	Note  string `json:"note"`
	Force bool   `json:"force"`
}
