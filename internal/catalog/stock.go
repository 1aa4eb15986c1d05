package catalog

import "fmt"

// StockShortage describes a request for more units than a product has.
type StockShortage struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

func (s StockShortage) String() string {
	return fmt.Sprintf("%s: requested %d, available %d", s.Name, s.Requested, s.Available)
}
