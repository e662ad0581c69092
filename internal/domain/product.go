package domain

// Product is a catalog entry as served by the backend.
type Product struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	NameDE        string  `json:"name_de"`
	NameEN        string  `json:"name_en"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	Category      string  `json:"category"`
	Stock         int     `json:"stock"`
	ImageURL      string  `json:"image_url"`
	IsFeatured    bool    `json:"is_featured"`
}

// InStock reports whether the product can be added to a cart at all.
func (p Product) InStock() bool {
	return p.Stock > 0
}
