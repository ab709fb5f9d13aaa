package models

import "errors"

var ErrStoreNotFound = errors.New("store not found")

// Store represents an outlet as seen by the customer display
type Store struct {
	ID        string `json:"id" bson:"_id" db:"id"`
	Name      string `json:"name" bson:"name" db:"name"`
	DisplayID string `json:"display_id" bson:"display_id" db:"display_id"` // 8-digit public code
}

// Cashier is the display-relevant subset of an employee row
type Cashier struct {
	ID           string `json:"id" bson:"_id" db:"id"`
	Name         string `json:"name" bson:"name" db:"name"`
	EmployeeCode string `json:"employee_id" bson:"employee_id" db:"employee_id"`
	AvatarURL    string `json:"avatar_url,omitempty" bson:"avatar_url,omitempty" db:"avatar_url"`
}

// Initial returns the first letter of the cashier name, used when no avatar is set.
func (c Cashier) Initial() string {
	for _, r := range c.Name {
		return string(r)
	}
	return "?"
}
