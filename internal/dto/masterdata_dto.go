package dto

// ProductResponse is the read model for catalogue master data.
type ProductResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Style    string `json:"style"`
	Category string `json:"category"`
	IsActive bool   `json:"is_active"`
}

// SupplierResponse is the read model for partner master data.
type SupplierResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	TaxID    *string `json:"tax_id,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive bool    `json:"is_active"`
}
