package models

import "time"

// Clicker is a hardware presenter remote.
type Clicker struct {
	ID         string    `json:"id"`
	MACAddress string    `json:"macAddress"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"isActive"`
	PressCount int       `json:"pressCount"`
	LastPress  time.Time `json:"lastPress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
