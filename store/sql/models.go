package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/pedalfleet/courier-ops/core"
)

type orderRecord struct {
	bun.BaseModel `bun:"table:courier_orders,alias:co"`

	ID                 string `bun:"id,pk"`
	TrackingNumber     string `bun:"tracking_number,notnull"`
	Status             string `bun:"status,notnull"`
	ProviderPickupID   string `bun:"provider_pickup_id"`
	ProviderDeliveryID string `bun:"provider_delivery_id"`

	SenderName    string `bun:"sender_name,notnull"`
	SenderPhone   string `bun:"sender_phone"`
	SenderEmail   string `bun:"sender_email"`
	SenderAddress string `bun:"sender_address"`

	ReceiverName    string `bun:"receiver_name,notnull"`
	ReceiverPhone   string `bun:"receiver_phone"`
	ReceiverEmail   string `bun:"receiver_email"`
	ReceiverAddress string `bun:"receiver_address"`

	Bike string `bun:"bike"`

	CollectionDriverName string `bun:"collection_driver_name"`
	DeliveryDriverName   string `bun:"delivery_driver_name"`

	OrderCollected bool `bun:"order_collected,notnull"`
	OrderDelivered bool `bun:"order_delivered,notnull"`

	CollectionConfirmationSentAt *time.Time `bun:"collection_confirmation_sent_at,nullzero"`
	DeliveryConfirmationSentAt   *time.Time `bun:"delivery_confirmation_sent_at,nullzero"`

	Tracking core.TrackingLog `bun:"tracking,type:jsonb,notnull"`

	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete"`
}

type jobRecord struct {
	bun.BaseModel `bun:"table:courier_jobs,alias:cj"`

	ID             string      `bun:"id,pk"`
	OrderID        string      `bun:"order_id,notnull"`
	Leg            string      `bun:"leg,notnull"`
	Status         string      `bun:"status,notnull"`
	Location       string      `bun:"location"`
	DriverID       string      `bun:"driver_id"`
	PreferredDates []time.Time `bun:"preferred_dates,type:jsonb"`
	CreatedAt      time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt      *time.Time  `bun:"deleted_at,soft_delete"`
}

type driverRecord struct {
	bun.BaseModel `bun:"table:courier_drivers,alias:cd"`

	ID             string     `bun:"id,pk"`
	Name           string     `bun:"name,notnull"`
	Email          string     `bun:"email"`
	Phone          string     `bun:"phone"`
	AvailableHours int        `bun:"available_hours,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:courier_webhook_deliveries,alias:cwd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id"`
	ProviderID     string     `bun:"provider_id,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	Payload        []byte     `bun:"payload"`
	LastError      string     `bun:"last_error"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
