package transport

import (
	"time"

	"github.com/pedalfleet/courier-ops/core"
)

type contactView struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type orderView struct {
	ID                   string               `json:"id"`
	TrackingNumber       string               `json:"tracking_number"`
	Status               core.OrderStatus     `json:"status"`
	Sender               contactView          `json:"sender"`
	Receiver             contactView          `json:"receiver"`
	Bike                 string               `json:"bike,omitempty"`
	ProviderPickupID     string               `json:"provider_pickup_id,omitempty"`
	ProviderDeliveryID   string               `json:"provider_delivery_id,omitempty"`
	CollectionDriverName string               `json:"collection_driver_name,omitempty"`
	DeliveryDriverName   string               `json:"delivery_driver_name,omitempty"`
	OrderCollected       bool                 `json:"order_collected"`
	OrderDelivered       bool                 `json:"order_delivered"`
	Tracking             []core.TrackingEvent `json:"tracking"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func newOrderView(order core.Order) orderView {
	return orderView{
		ID:                   order.ID,
		TrackingNumber:       order.TrackingNumber,
		Status:               order.Status,
		Sender:               newContactView(order.Sender),
		Receiver:             newContactView(order.Receiver),
		Bike:                 order.Bike,
		ProviderPickupID:     order.ProviderPickupID,
		ProviderDeliveryID:   order.ProviderDeliveryID,
		CollectionDriverName: order.CollectionDriverName,
		DeliveryDriverName:   order.DeliveryDriverName,
		OrderCollected:       order.OrderCollected,
		OrderDelivered:       order.OrderDelivered,
		Tracking:             order.Tracking.Updates,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
}

func newContactView(contact core.Contact) contactView {
	return contactView{
		Name:    contact.Name,
		Phone:   contact.Phone,
		Email:   contact.Email,
		Address: contact.Address,
	}
}

type jobView struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	Leg            core.LegType   `json:"leg"`
	Status         core.JobStatus `json:"status"`
	Location       string         `json:"location"`
	DriverID       string         `json:"driver_id,omitempty"`
	PreferredDates []time.Time    `json:"preferred_dates,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func newJobView(job core.Job) jobView {
	return jobView{
		ID:             job.ID,
		OrderID:        job.OrderID,
		Leg:            job.Leg,
		Status:         job.Status,
		Location:       job.Location,
		DriverID:       job.DriverID,
		PreferredDates: job.PreferredDates,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

type driverView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	AvailableHours int       `json:"available_hours"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newDriverView(driver core.Driver) driverView {
	return driverView{
		ID:             driver.ID,
		Name:           driver.Name,
		Email:          driver.Email,
		Phone:          driver.Phone,
		AvailableHours: driver.AvailableHours,
		CreatedAt:      driver.CreatedAt,
		UpdatedAt:      driver.UpdatedAt,
	}
}
