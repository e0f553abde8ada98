package webhooks

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// Normalizer parses a raw webhook body into the canonical event.
type Normalizer func(body []byte) (core.NormalizedEvent, error)

// DeliveryIDExtractor pulls the provider's delivery id for dedupe. An
// empty return is valid: the pipeline is idempotent and processes the
// redelivery end to end.
type DeliveryIDExtractor func(req core.InboundRequest) string

// Processor runs the reconciliation pipeline for one webhook delivery.
// Each invocation is stateless; concurrency comes from the hosting
// platform running handlers in parallel.
type Processor struct {
	Verifier    Verifier
	Normalize   Normalizer
	Resolver    *OrderResolver
	Orders      core.OrderStore
	SideEffects *SideEffectDispatcher

	Ledger      DeliveryLedger
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration

	Logger core.Logger
	Now    func() time.Time
}

func NewProcessor(
	verifier Verifier,
	normalize Normalizer,
	resolver *OrderResolver,
	orders core.OrderStore,
	sideEffects *SideEffectDispatcher,
	logger core.Logger,
) *Processor {
	return &Processor{
		Verifier:    verifier,
		Normalize:   normalize,
		Resolver:    resolver,
		Orders:      orders,
		SideEffects: sideEffects,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		Logger:      glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Normalize == nil || p.Resolver == nil || p.Orders == nil {
		return core.InboundResult{}, processorInternal("webhooks: processor requires normalizer, resolver, and order store")
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata:   map[string]any{"rejected": true},
			}, err
		}
	}

	event, err := p.Normalize(req.Body)
	if err != nil {
		return core.InboundResult{}, err
	}

	claimID := ""
	attempts := 0
	if p.Ledger != nil && p.ExtractID != nil {
		if deliveryID := strings.TrimSpace(p.ExtractID(req)); deliveryID != "" {
			record, claimed, claimErr := p.Ledger.Claim(ctx, req.ProviderID, deliveryID, req.Body, p.claimLease())
			if claimErr != nil {
				return core.InboundResult{}, processorWrap(claimErr, "webhooks: delivery claim failed")
			}
			if !claimed {
				return core.InboundResult{
					Accepted:   true,
					StatusCode: http.StatusOK,
					Metadata: map[string]any{
						"delivery_id": deliveryID,
						"deduped":     true,
					},
				}, nil
			}
			claimID = record.ClaimID
			attempts = record.Attempts
		}
	}

	result, err := p.reconcile(ctx, event)
	if err != nil {
		p.failClaim(ctx, claimID, attempts, err)
		return core.InboundResult{}, err
	}
	p.completeClaim(ctx, claimID)
	return result, nil
}

func (p *Processor) reconcile(ctx context.Context, event core.NormalizedEvent) (core.InboundResult, error) {
	order, err := p.Resolver.Resolve(ctx, event)
	if err != nil {
		return core.InboundResult{}, err
	}

	hasCompletion := order.Tracking.HasCompletion(event.Leg)
	transition, err := core.ComputeTransition(order.Status, event.Leg, event.Event, hasCompletion)
	if err != nil {
		return core.InboundResult{}, processorWrap(err, "webhooks: transition computation failed")
	}

	if transition.Ignored {
		return acceptedResult(order.ID, "event ignored"), nil
	}

	if transition.DriverNameUpdate {
		if strings.TrimSpace(event.DriverName) != "" {
			if err := p.Orders.SetDriverName(ctx, order.ID, event.Leg, event.DriverName); err != nil {
				return core.InboundResult{}, orderUpdateFailed(err, order.ID)
			}
		}
		return acceptedResult(order.ID, "driver assignment recorded"), nil
	}

	apply := buildApplication(transition, event, p.now())
	updated, err := p.Orders.ApplyTransition(ctx, order.ID, apply)
	if err != nil {
		return core.InboundResult{}, orderUpdateFailed(err, order.ID)
	}

	if p.SideEffects != nil {
		switch updated.Status {
		case core.StatusCollected, core.StatusDelivered:
			p.SideEffects.Dispatch(ctx, updated)
		default:
			p.SideEffects.PropagateJobs(ctx, updated)
		}
	}

	p.logger().Info("webhook reconciled",
		"order_id", updated.ID,
		"leg", string(event.Leg),
		"event", string(event.Event),
		"status", string(updated.Status),
	)
	return acceptedResult(updated.ID, transition.Description), nil
}

func buildApplication(transition core.Transition, event core.NormalizedEvent, now time.Time) core.TransitionApplication {
	apply := core.TransitionApplication{NextStatus: transition.Next}

	timestamp := event.OccurredAt
	if timestamp.IsZero() {
		timestamp = now
	}

	if transition.MergeProof {
		apply.Merge = &core.ProofMerge{
			Leg:          event.Leg,
			PODURLs:      event.PODURLs,
			SignatureURL: event.SignatureURL,
		}
	}
	if transition.LedgerEvent != "" {
		entry := &core.TrackingEvent{
			Status:      transition.Next,
			Event:       transition.LedgerEvent,
			Leg:         event.Leg,
			LegOrderID:  event.ProviderOrderID,
			Timestamp:   timestamp,
			Description: transition.Description,
			DriverName:  event.DriverName,
		}
		if transition.Completion {
			entry.PODURLs = event.PODURLs
			entry.SignatureURL = event.SignatureURL
		}
		apply.Append = entry
	}

	switch transition.Next {
	case core.StatusCollected:
		apply.SetCollected = true
	case core.StatusDelivered:
		apply.SetCollected = true
		apply.SetDelivered = true
	}
	return apply
}

func (p *Processor) failClaim(ctx context.Context, claimID string, attempts int, cause error) {
	if p.Ledger == nil || claimID == "" {
		return
	}
	nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(attempts))
	if err := p.Ledger.Fail(ctx, claimID, cause, nextAttemptAt); err != nil {
		p.logger().Error("release delivery claim failed", "claim_id", claimID, "error", err.Error())
	}
}

func (p *Processor) completeClaim(ctx context.Context, claimID string) {
	if p.Ledger == nil || claimID == "" {
		return
	}
	// The order mutation already committed; a failed claim completion only
	// means a redundant (idempotent) reprocess on the provider's retry.
	if err := p.Ledger.Complete(ctx, claimID); err != nil {
		p.logger().Error("complete delivery claim failed", "claim_id", claimID, "error", err.Error())
	}
}

func acceptedResult(orderID, description string) core.InboundResult {
	return core.InboundResult{
		Accepted:          true,
		StatusCode:        http.StatusOK,
		OrderID:           orderID,
		StatusDescription: description,
		Metadata:          map[string]any{},
	}
}

func orderUpdateFailed(source error, orderID string) error {
	return goerrors.Wrap(source, goerrors.CategoryOperation, "webhooks: order update failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorOrderUpdateFailed).
		WithMetadata(map[string]any{"order_id": orderID})
}

func processorWrap(source error, message string) error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorInternal)
}

func processorInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorInternal)
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) logger() core.Logger {
	if p != nil && p.Logger != nil {
		return p.Logger
	}
	return glog.Nop()
}
