package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo (multi-bodega).
// El núcleo de traslados solo lo consulta; Cost se actualiza con los ajustes de entrada.
type Product struct {
	ID         string
	CompanyID  string
	SKU        string
	Name       string
	LotTracked bool            // exige lote en cada movimiento
	Cost       decimal.Decimal // costo promedio ponderado
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
