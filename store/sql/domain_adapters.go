package sqlstore

import (
	"time"

	"github.com/pedalfleet/courier-ops/core"
)

func newOrderRecord(order core.Order, now time.Time) *orderRecord {
	record := &orderRecord{
		ID:                   order.ID,
		TrackingNumber:       order.TrackingNumber,
		Status:               string(order.Status),
		ProviderPickupID:     order.ProviderPickupID,
		ProviderDeliveryID:   order.ProviderDeliveryID,
		SenderName:           order.Sender.Name,
		SenderPhone:          order.Sender.Phone,
		SenderEmail:          order.Sender.Email,
		SenderAddress:        order.Sender.Address,
		ReceiverName:         order.Receiver.Name,
		ReceiverPhone:        order.Receiver.Phone,
		ReceiverEmail:        order.Receiver.Email,
		ReceiverAddress:      order.Receiver.Address,
		Bike:                 order.Bike,
		CollectionDriverName: order.CollectionDriverName,
		DeliveryDriverName:   order.DeliveryDriverName,
		OrderCollected:       order.OrderCollected,
		OrderDelivered:       order.OrderDelivered,
		Tracking:             order.Tracking,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if !order.CreatedAt.IsZero() {
		record.CreatedAt = order.CreatedAt
	}
	if order.CollectionConfirmationSentAt != nil {
		sentAt := *order.CollectionConfirmationSentAt
		record.CollectionConfirmationSentAt = &sentAt
	}
	if order.DeliveryConfirmationSentAt != nil {
		sentAt := *order.DeliveryConfirmationSentAt
		record.DeliveryConfirmationSentAt = &sentAt
	}
	return record
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	order := core.Order{
		ID:                 r.ID,
		TrackingNumber:     r.TrackingNumber,
		Status:             core.OrderStatus(r.Status),
		ProviderPickupID:   r.ProviderPickupID,
		ProviderDeliveryID: r.ProviderDeliveryID,
		Sender: core.Contact{
			Name:    r.SenderName,
			Phone:   r.SenderPhone,
			Email:   r.SenderEmail,
			Address: r.SenderAddress,
		},
		Receiver: core.Contact{
			Name:    r.ReceiverName,
			Phone:   r.ReceiverPhone,
			Email:   r.ReceiverEmail,
			Address: r.ReceiverAddress,
		},
		Bike:                 r.Bike,
		CollectionDriverName: r.CollectionDriverName,
		DeliveryDriverName:   r.DeliveryDriverName,
		OrderCollected:       r.OrderCollected,
		OrderDelivered:       r.OrderDelivered,
		Tracking:             r.Tracking,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.CollectionConfirmationSentAt != nil {
		sentAt := *r.CollectionConfirmationSentAt
		order.CollectionConfirmationSentAt = &sentAt
	}
	if r.DeliveryConfirmationSentAt != nil {
		sentAt := *r.DeliveryConfirmationSentAt
		order.DeliveryConfirmationSentAt = &sentAt
	}
	return order
}

func newJobRecord(job core.Job, now time.Time) *jobRecord {
	record := &jobRecord{
		ID:             job.ID,
		OrderID:        job.OrderID,
		Leg:            string(job.Leg),
		Status:         string(job.Status),
		Location:       job.Location,
		DriverID:       job.DriverID,
		PreferredDates: append([]time.Time(nil), job.PreferredDates...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !job.CreatedAt.IsZero() {
		record.CreatedAt = job.CreatedAt
	}
	return record
}

func (r *jobRecord) toDomain() core.Job {
	if r == nil {
		return core.Job{}
	}
	return core.Job{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Leg:            core.LegType(r.Leg),
		Status:         core.JobStatus(r.Status),
		Location:       r.Location,
		DriverID:       r.DriverID,
		PreferredDates: append([]time.Time(nil), r.PreferredDates...),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newDriverRecord(driver core.Driver, now time.Time) *driverRecord {
	record := &driverRecord{
		ID:             driver.ID,
		Name:           driver.Name,
		Email:          driver.Email,
		Phone:          driver.Phone,
		AvailableHours: driver.AvailableHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !driver.CreatedAt.IsZero() {
		record.CreatedAt = driver.CreatedAt
	}
	return record
}

func (r *driverRecord) toDomain() core.Driver {
	if r == nil {
		return core.Driver{}
	}
	return core.Driver{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		AvailableHours: r.AvailableHours,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
