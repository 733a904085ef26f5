package observability

// Metric name prefixes
const (
	MetricPrefix = "lbx"
)

// Metric names
const (
	// Wallet metrics
	BalanceChangesTotal = MetricPrefix + ".wallet.balance_changes_total"
	BalanceChangeAmount = MetricPrefix + ".wallet.balance_change_amount"
	SignupBonusesTotal  = MetricPrefix + ".wallet.signup_bonuses_total"

	// Jackpot metrics
	JackpotChangesTotal = MetricPrefix + ".jackpot.changes_total"

	// Promo metrics
	PromoRedemptionsTotal = MetricPrefix + ".promo.redemptions_total"

	// Stream event metrics
	StreamEventsAppliedTotal = MetricPrefix + ".stream.events_applied_total"

	// Recharge metrics
	RechargeOrdersTotal = MetricPrefix + ".recharge.orders_total"

	// Event sink metrics
	EventsPublishedTotal = MetricPrefix + ".sink.events_published_total"

	// HTTP metrics
	HTTPRequestsTotal   = MetricPrefix + ".http.requests_total"
	HTTPRequestDuration = MetricPrefix + ".http.request_duration"
)

// Label keys
const (
	LabelReason     = "reason"
	LabelChange     = "change"
	LabelResult     = "result"
	LabelKind       = "kind"
	LabelProvider   = "provider"
	LabelSubject    = "subject"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
	LabelStatus     = "status"
)

// Result values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
