package core

import (
	"fmt"
)

// Transition is the computed outcome of applying one normalized dispatch
// event to an order. It is a pure description: the caller decides how to
// persist it.
type Transition struct {
	Next        OrderStatus
	Changed     bool
	Description string

	// LedgerEvent names the entry to append; empty means no ledger write.
	LedgerEvent string
	// Completion marks the appended entry as a leg completion, which also
	// raises the order_collected / order_delivered milestone flags.
	Completion bool
	// MergeProof folds proof data into the existing completed entry for
	// the leg instead of appending a new one.
	MergeProof bool
	// DriverNameUpdate means the event only carries a driver assignment;
	// only the leg's driver name column changes.
	DriverNameUpdate bool
	// Ignored events acknowledge the webhook without touching the order.
	Ignored bool
}

// ComputeTransition maps (current status, leg, event) to the next order
// status. hasCompletion reports whether the order's ledger already holds a
// completion entry for the leg; it decides whether a proof upload is
// treated as the completion itself or as a backfill onto the recorded one.
//
// Proof uploads may arrive before, after, or instead of an explicit
// completion event for the same physical action. They must never regress a
// terminal leg state nor create a duplicate completion record.
func ComputeTransition(current OrderStatus, leg LegType, event EventType, hasCompletion bool) (Transition, error) {
	if !current.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidOrderStatus, current)
	}
	if leg != LegCollection && leg != LegDelivery {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidLegType, leg)
	}

	switch event {
	case EventOnTheWay:
		if leg == LegCollection {
			return Transition{
				Next:        StatusDriverToCollection,
				Changed:     current != StatusDriverToCollection,
				Description: "Driver is on the way to collect the bike",
				LedgerEvent: LedgerEventOnTheWay,
			}, nil
		}
		return Transition{
			Next:        StatusDriverToDelivery,
			Changed:     current != StatusDriverToDelivery,
			Description: "Driver is on the way to deliver the bike",
			LedgerEvent: LedgerEventOnTheWay,
		}, nil

	case EventCompleted:
		if hasCompletion {
			// Redelivered completion: the leg is already recorded as
			// completed, so re-assert the status and fold any proof data
			// into the existing entry instead of appending a duplicate.
			transition := completionTransition(current, leg, "")
			transition.LedgerEvent = ""
			transition.Completion = false
			transition.MergeProof = true
			return transition, nil
		}
		return completionTransition(current, leg, ""), nil

	case EventProofUploaded:
		if hasCompletion {
			// Proof arrived after the completion event: backfill only.
			return Transition{
				Next:        current,
				Changed:     false,
				Description: "Proof of delivery added",
				MergeProof:  true,
			}, nil
		}
		// Proof arrived without a paired completion: the upload is the
		// completion.
		return completionTransition(current, leg, " (confirmed by proof upload)"), nil

	case EventFailed:
		if leg == LegCollection {
			return Transition{
				Next:        StatusScheduledDatesPending,
				Changed:     current != StatusScheduledDatesPending,
				Description: "Collection attempt failed, awaiting rescheduling",
				LedgerEvent: LedgerEventFailed,
			}, nil
		}
		return Transition{
			Next:        StatusCollected,
			Changed:     current != StatusCollected,
			Description: "Delivery attempt failed, awaiting redelivery scheduling",
			LedgerEvent: LedgerEventFailed,
		}, nil

	case EventAssigned, EventAccepted, EventStarted:
		return Transition{
			Next:             current,
			Changed:          false,
			DriverNameUpdate: true,
		}, nil

	default:
		// deleted, unassigned, and anything the provider adds later.
		return Transition{
			Next:    current,
			Changed: false,
			Ignored: true,
		}, nil
	}
}

func completionTransition(current OrderStatus, leg LegType, suffix string) Transition {
	if leg == LegCollection {
		return Transition{
			Next:        StatusCollected,
			Changed:     current != StatusCollected,
			Description: "Bike collected from sender" + suffix,
			LedgerEvent: LedgerEventCompleted,
			Completion:  true,
		}
	}
	return Transition{
		Next:        StatusDelivered,
		Changed:     current != StatusDelivered,
		Description: "Bike delivered to receiver" + suffix,
		LedgerEvent: LedgerEventCompleted,
		Completion:  true,
	}
}
