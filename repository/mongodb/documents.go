package mongodb

import (
	"fmt"
	"time"

	"lbx/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ledgerDoc struct {
	ID           int64     `bson:"id"`
	Timestamp    time.Time `bson:"ts"`
	Delta        int64     `bson:"delta"`
	Reason       string    `bson:"reason"`
	Ref          string    `bson:"ref"`
	BalanceAfter int64     `bson:"balanceAfter"`
}

type walletDoc struct {
	Username             string      `bson:"_id"`
	Balance              int64       `bson:"balance"`
	SignupBonusGrantedAt *time.Time  `bson:"signupBonusGrantedAt,omitempty"`
	Seq                  int64       `bson:"seq"`
	Ledger               []ledgerDoc `bson:"ledger,omitempty"`
	CreatedAt            time.Time   `bson:"createdAt"`
	UpdatedAt            time.Time   `bson:"updatedAt"`
}

func (d *walletDoc) toModel() *models.Account {
	return &models.Account{
		Username:             d.Username,
		Balance:              d.Balance,
		SignupBonusGrantedAt: d.SignupBonusGrantedAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func (d *ledgerDoc) toModel(username string) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:           d.ID,
		Username:     username,
		Timestamp:    d.Timestamp,
		Delta:        d.Delta,
		Reason:       d.Reason,
		Ref:          d.Ref,
		BalanceAfter: d.BalanceAfter,
	}
}

type jackpotDoc struct {
	Month         string               `bson:"_id"`
	OverrideStart *time.Time           `bson:"overrideStart,omitempty"`
	Extra         primitive.Decimal128 `bson:"extra"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func (d *jackpotDoc) toModel() (*models.JackpotPeriod, error) {
	extra, err := fromDecimal128(d.Extra)
	if err != nil {
		return nil, err
	}
	return &models.JackpotPeriod{
		Month:         d.Month,
		OverrideStart: d.OverrideStart,
		Extra:         extra,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

type promoDoc struct {
	Code           string     `bson:"_id"`
	Amount         int64      `bson:"amount"`
	MaxRedemptions int        `bson:"maxRedemptions"`
	PerUserLimit   int        `bson:"perUserLimit"`
	RedeemedCount  int        `bson:"redeemedCount"`
	Active         bool       `bson:"active"`
	ExpiresAt      *time.Time `bson:"expiresAt,omitempty"`
	CreatedBy      string     `bson:"createdBy,omitempty"`
	Notes          string     `bson:"notes,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

func newPromoDoc(p *models.PromoCode) *promoDoc {
	return &promoDoc{
		Code:           p.Code,
		Amount:         p.Amount,
		MaxRedemptions: p.MaxRedemptions,
		PerUserLimit:   p.PerUserLimit,
		RedeemedCount:  p.RedeemedCount,
		Active:         p.Active,
		ExpiresAt:      p.ExpiresAt,
		CreatedBy:      p.CreatedBy,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (d *promoDoc) toModel() *models.PromoCode {
	return &models.PromoCode{
		Code:           d.Code,
		Amount:         d.Amount,
		MaxRedemptions: d.MaxRedemptions,
		PerUserLimit:   d.PerUserLimit,
		RedeemedCount:  d.RedeemedCount,
		Active:         d.Active,
		ExpiresAt:      d.ExpiresAt,
		CreatedBy:      d.CreatedBy,
		Notes:          d.Notes,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type redemptionDoc struct {
	ID        string    `bson:"_id"`
	Code      string    `bson:"code"`
	Username  string    `bson:"username"`
	Seq       int       `bson:"seq"`
	Amount    int64     `bson:"amount"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d *redemptionDoc) toModel() *models.PromoRedemption {
	return &models.PromoRedemption{
		ID:        d.ID,
		Code:      d.Code,
		Username:  d.Username,
		Seq:       d.Seq,
		Amount:    d.Amount,
		CreatedAt: d.CreatedAt,
	}
}

type streamEventKey struct {
	Provider string `bson:"provider"`
	EventID  string `bson:"eventId"`
}

type streamEventDoc struct {
	Key        streamEventKey `bson:"_id"`
	Type       string         `bson:"type"`
	Username   string         `bson:"username,omitempty"`
	Quantity   int            `bson:"quantity"`
	Recipients []string       `bson:"recipients,omitempty"`
	OccurredAt time.Time      `bson:"occurredAt"`
	ReceivedAt time.Time      `bson:"receivedAt"`
	Applied    bool           `bson:"applied"`
	AppliedAt  *time.Time     `bson:"appliedAt,omitempty"`
}

func newStreamEventDoc(e *models.StreamEvent) *streamEventDoc {
	return &streamEventDoc{
		Key:        streamEventKey{Provider: e.Provider, EventID: e.EventID},
		Type:       string(e.Type),
		Username:   e.Username,
		Quantity:   e.Quantity,
		Recipients: e.Recipients,
		OccurredAt: e.OccurredAt,
		ReceivedAt: e.ReceivedAt,
		Applied:    e.Applied,
		AppliedAt:  e.AppliedAt,
	}
}

func (d *streamEventDoc) toModel() *models.StreamEvent {
	return &models.StreamEvent{
		Provider:   d.Key.Provider,
		EventID:    d.Key.EventID,
		Type:       models.StreamEventType(d.Type),
		Username:   d.Username,
		Quantity:   d.Quantity,
		Recipients: d.Recipients,
		OccurredAt: d.OccurredAt,
		ReceivedAt: d.ReceivedAt,
		Applied:    d.Applied,
		AppliedAt:  d.AppliedAt,
	}
}

type eventRulesDoc struct {
	ID               string               `bson:"_id"`
	SubNew           int64                `bson:"subNew"`
	SubRenew         int64                `bson:"subRenew"`
	SubGiftGifterPer int64                `bson:"subGiftGifterPer"`
	SubGiftRecipient int64                `bson:"subGiftRecipient"`
	CapPerDay        int64                `bson:"capPerDay"`
	JackpotPerSub    primitive.Decimal128 `bson:"jackpotPerSub"`
	UpdatedBy        string               `bson:"updatedBy,omitempty"`
	UpdatedAt        *time.Time           `bson:"updatedAt,omitempty"`
}

func newEventRulesDoc(id string, rules *models.EventRules) (*eventRulesDoc, error) {
	jackpot, err := toDecimal128(rules.JackpotPerSub)
	if err != nil {
		return nil, err
	}
	return &eventRulesDoc{
		ID:               id,
		SubNew:           rules.SubNew,
		SubRenew:         rules.SubRenew,
		SubGiftGifterPer: rules.SubGiftGifterPer,
		SubGiftRecipient: rules.SubGiftRecipient,
		CapPerDay:        rules.CapPerDay,
		JackpotPerSub:    jackpot,
		UpdatedBy:        rules.UpdatedBy,
		UpdatedAt:        rules.UpdatedAt,
	}, nil
}

func (d *eventRulesDoc) toModel() (*models.EventRules, error) {
	jackpot, err := fromDecimal128(d.JackpotPerSub)
	if err != nil {
		return nil, err
	}
	return &models.EventRules{
		SubNew:           d.SubNew,
		SubRenew:         d.SubRenew,
		SubGiftGifterPer: d.SubGiftGifterPer,
		SubGiftRecipient: d.SubGiftRecipient,
		CapPerDay:        d.CapPerDay,
		JackpotPerSub:    jackpot,
		UpdatedBy:        d.UpdatedBy,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type rechargeOrderDoc struct {
	ID        string               `bson:"_id"`
	Username  string               `bson:"username"`
	Amount    int64                `bson:"amount"`
	USD       primitive.Decimal128 `bson:"usd"`
	Asset     string               `bson:"asset"`
	Address   string               `bson:"address,omitempty"`
	Ref       string               `bson:"ref,omitempty"`
	TxID      string               `bson:"txid,omitempty"`
	Status    string               `bson:"status"`
	Note      string               `bson:"note,omitempty"`
	CreatedAt time.Time            `bson:"createdAt"`
	DecidedAt *time.Time           `bson:"decidedAt,omitempty"`
	DecidedBy string               `bson:"decidedBy,omitempty"`
}

func newRechargeOrderDoc(o *models.RechargeOrder) (*rechargeOrderDoc, error) {
	usd, err := toDecimal128(o.USD)
	if err != nil {
		return nil, err
	}
	return &rechargeOrderDoc{
		ID:        o.ID,
		Username:  o.Username,
		Amount:    o.Amount,
		USD:       usd,
		Asset:     o.Asset,
		Address:   o.Address,
		Ref:       o.Ref,
		TxID:      o.TxID,
		Status:    string(o.Status),
		Note:      o.Note,
		CreatedAt: o.CreatedAt,
		DecidedAt: o.DecidedAt,
		DecidedBy: o.DecidedBy,
	}, nil
}

func (d *rechargeOrderDoc) toModel() (*models.RechargeOrder, error) {
	usd, err := fromDecimal128(d.USD)
	if err != nil {
		return nil, err
	}
	return &models.RechargeOrder{
		ID:        d.ID,
		Username:  d.Username,
		Amount:    d.Amount,
		USD:       usd,
		Asset:     d.Asset,
		Address:   d.Address,
		Ref:       d.Ref,
		TxID:      d.TxID,
		Status:    models.OrderStatus(d.Status),
		Note:      d.Note,
		CreatedAt: d.CreatedAt,
		DecidedAt: d.DecidedAt,
		DecidedBy: d.DecidedBy,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	value, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to convert %s to decimal128: %w", d, err)
	}
	return value, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to convert decimal128 %s: %w", d, err)
	}
	return value, nil
}
