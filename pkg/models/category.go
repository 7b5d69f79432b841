package models

import "time"

// Category groups entries. Order defines display and iteration order.
type Category struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Order     int       `json:"order"`
}
