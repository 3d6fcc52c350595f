package entity

import "time"

// Lot lote de un producto (catálogo externo, solo lectura para el núcleo).
type Lot struct {
	ID        string
	ProductID string
	Code      string
	ExpiresAt *time.Time // nil = sin vencimiento
	CreatedAt time.Time
}
