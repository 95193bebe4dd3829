package dto

// ProductResponse describes one purchasable membership plan.
type ProductResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"originalPrice,omitempty"`
	DurationDays  int    `json:"durationDays"`
	Recommend     bool   `json:"recommend,omitempty"`
}
