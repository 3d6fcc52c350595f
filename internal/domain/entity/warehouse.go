package entity

import "time"

// Warehouse bodega o sucursal origen/destino de traslados.
type Warehouse struct {
	ID        string
	CompanyID string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BelongsTo indica si la bodega pertenece a la empresa.
func (w *Warehouse) BelongsTo(companyID string) bool {
	return w != nil && w.CompanyID == companyID
}
