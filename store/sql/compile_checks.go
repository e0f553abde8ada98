package sqlstore

import (
	"github.com/pedalfleet/courier-ops/core"
	"github.com/pedalfleet/courier-ops/webhooks"
)

var (
	_ core.OrderStore         = (*OrderStore)(nil)
	_ core.JobStore           = (*JobStore)(nil)
	_ core.DriverStore        = (*DriverStore)(nil)
	_ core.StoreProvider      = (*RepositoryFactory)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
)
