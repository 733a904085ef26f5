package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"lbx/config"
	"lbx/events"
	"lbx/models"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the lbx service
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	balanceChangesCounter   metric.Int64Counter
	balanceChangeAmountHist metric.Int64Histogram
	signupBonusesCounter    metric.Int64Counter
	jackpotChangesCounter   metric.Int64Counter
	promoRedemptionsCounter metric.Int64Counter
	streamEventsCounter     metric.Int64Counter
	rechargeOrdersCounter   metric.Int64Counter
	eventsPublishedCounter  metric.Int64Counter
	httpRequestsCounter     metric.Int64Counter
	httpRequestDurationHist metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	interval := time.Duration(mp.config.OTelExportIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	return mp.initializeWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

// initializeWithReader builds the meter provider around reader. Callers hold mu.
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("lbx")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.balanceChangesCounter, err = mp.meter.Int64Counter(
		BalanceChangesTotal,
		metric.WithDescription("Total number of wallet balance changes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance changes counter: %w", err)
	}

	mp.balanceChangeAmountHist, err = mp.meter.Int64Histogram(
		BalanceChangeAmount,
		metric.WithDescription("Absolute LBX amount of wallet balance changes"),
		metric.WithUnit("{LBX}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 1000, 10000),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance change histogram: %w", err)
	}

	mp.signupBonusesCounter, err = mp.meter.Int64Counter(
		SignupBonusesTotal,
		metric.WithDescription("Total number of signup bonuses granted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create signup bonus counter: %w", err)
	}

	mp.jackpotChangesCounter, err = mp.meter.Int64Counter(
		JackpotChangesTotal,
		metric.WithDescription("Total number of jackpot mutations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create jackpot changes counter: %w", err)
	}

	mp.promoRedemptionsCounter, err = mp.meter.Int64Counter(
		PromoRedemptionsTotal,
		metric.WithDescription("Total number of promo redemption attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create promo redemptions counter: %w", err)
	}

	mp.streamEventsCounter, err = mp.meter.Int64Counter(
		StreamEventsAppliedTotal,
		metric.WithDescription("Total number of provider events applied"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stream events counter: %w", err)
	}

	mp.rechargeOrdersCounter, err = mp.meter.Int64Counter(
		RechargeOrdersTotal,
		metric.WithDescription("Total number of recharge orders placed or decided"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create recharge orders counter: %w", err)
	}

	mp.eventsPublishedCounter, err = mp.meter.Int64Counter(
		EventsPublishedTotal,
		metric.WithDescription("Total number of events forwarded to the external sink"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create events published counter: %w", err)
	}

	mp.httpRequestsCounter, err = mp.meter.Int64Counter(
		HTTPRequestsTotal,
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP requests counter: %w", err)
	}

	mp.httpRequestDurationHist, err = mp.meter.Float64Histogram(
		HTTPRequestDuration,
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Subscribe records every domain event published on bus
func (mp *MetricsProvider) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		mp.RecordEvent(event)
	})
}

// RecordEvent records the metric matching a domain event
func (mp *MetricsProvider) RecordEvent(event events.Event) {
	if !mp.isEnabled() {
		return
	}
	ctx := context.Background()

	switch e := event.(type) {
	case events.BalanceChangeEvent:
		attrs := metric.WithAttributes(attribute.String(LabelReason, models.ReasonClass(e.Reason)))
		mp.balanceChangesCounter.Add(ctx, 1, attrs)
		amount := e.ChangeAmount
		if amount < 0 {
			amount = -amount
		}
		mp.balanceChangeAmountHist.Record(ctx, amount, attrs)

	case events.SignupBonusGrantedEvent:
		mp.signupBonusesCounter.Add(ctx, 1)

	case events.JackpotChangedEvent:
		mp.jackpotChangesCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelChange, string(e.Change))),
		)

	case events.PromoRedeemedEvent:
		mp.promoRedemptionsCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelResult, ResultSuccess)),
		)

	case events.StreamEventAppliedEvent:
		mp.streamEventsCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String(LabelKind, e.Kind),
				attribute.String(LabelProvider, e.Provider),
			),
		)

	case events.RechargeOrderEvent:
		mp.rechargeOrdersCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String(LabelStatus, e.Status)),
		)
	}
}

// RecordPromoRejection records a redemption attempt that failed with code
func (mp *MetricsProvider) RecordPromoRejection(code string) {
	if !mp.isEnabled() {
		return
	}
	mp.promoRedemptionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelResult, code)),
	)
}

// RecordEventPublished records a forward attempt to the external sink
func (mp *MetricsProvider) RecordEventPublished(subject string, success bool) {
	if !mp.isEnabled() {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	mp.eventsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelSubject, subject),
			attribute.String(LabelResult, result),
		),
	)
}

// RecordHTTPRequest records a served HTTP request
func (mp *MetricsProvider) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(LabelMethod, method),
		attribute.String(LabelRoute, route),
		attribute.String(LabelStatusCode, strconv.Itoa(status)),
	)
	ctx := context.Background()
	mp.httpRequestsCounter.Add(ctx, 1, attrs)
	mp.httpRequestDurationHist.Record(ctx, duration.Seconds(), attrs)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider. It is nil before initialization
// and every Record method is safe to call on nil.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
