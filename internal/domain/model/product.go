package model

// Product describes a purchasable membership tier. The catalog is static:
// products are defined at build time and never persisted.
type Product struct {
	ID            string
	Name          string
	Price         int64 // minor units (cents)
	OriginalPrice int64
	DurationDays  int
	Recommend     bool
}
