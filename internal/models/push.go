package models

import "time"

// PushSubscription is a browser push endpoint registered by a department.
type PushSubscription struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"departmentId"`
	Endpoint     string    `json:"endpoint"`
	P256dh       string    `json:"p256dh"` // Mapped from keys.p256dh
	Auth         string    `json:"auth"`   // Mapped from keys.auth
	CreatedAt    time.Time `json:"createdAt"`
}
