// Package seed carga un catálogo inicial (bodegas, productos, lotes y existencias de apertura)
// desde un archivo JSON. Las existencias entran como ajustes, así kardex y saldos nacen consistentes.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// SeedActor usuario con el que quedan firmados los ajustes de apertura.
const SeedActor = "seed"

// Writer alta de catálogo; lo implementan el almacenamiento en memoria y PostgreSQL.
type Writer interface {
	SaveWarehouse(ctx context.Context, w entity.Warehouse) error
	SaveProduct(ctx context.Context, p entity.Product) error
	SaveLot(ctx context.Context, l entity.Lot) error
}

// Catalog contenido del archivo de carga.
type Catalog struct {
	CompanyID  string      `json:"company_id" validate:"required,uuid"`
	Warehouses []Warehouse `json:"warehouses" validate:"dive"`
	Products   []Product   `json:"products" validate:"dive"`
	Lots       []Lot       `json:"lots" validate:"dive"`
	Stock      []Opening   `json:"stock" validate:"dive"`
}

type Warehouse struct {
	ID      string `json:"id" validate:"required,uuid"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

type Product struct {
	ID         string          `json:"id" validate:"required,uuid"`
	SKU        string          `json:"sku" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	LotTracked bool            `json:"lot_tracked"`
	Cost       decimal.Decimal `json:"cost"`
}

type Lot struct {
	ID        string     `json:"id" validate:"required,uuid"`
	ProductID string     `json:"product_id" validate:"required,uuid"`
	Code      string     `json:"code" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Opening existencia de apertura de una clave.
type Opening struct {
	WarehouseID string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID   string          `json:"product_id" validate:"required,uuid"`
	LotID       string          `json:"lot_id" validate:"omitempty,uuid"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// Result conteos de lo aplicado.
type Result struct {
	Warehouses int
	Products   int
	Lots       int
	Openings   int // ajustes nuevos
	Replayed   int // ajustes que ya existían
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode lee y valida un catálogo.
func Decode(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decodificar catálogo: %w", err)
	}
	if err := validate.Struct(&cat); err != nil {
		return nil, fmt.Errorf("catálogo inválido: %w", err)
	}
	for i, o := range cat.Stock {
		if !o.Quantity.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("catálogo inválido: stock[%d].quantity debe ser mayor que cero", i)
		}
	}
	for i, p := range cat.Products {
		if p.Cost.IsNegative() {
			return nil, fmt.Errorf("catálogo inválido: products[%d].cost negativo", i)
		}
	}
	return &cat, nil
}

// LoadFile abre y decodifica path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("abrir catálogo: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Apply escribe el catálogo y registra las existencias de apertura. Es repetible: la referencia
// de cada ajuste se deriva de la clave, así una segunda carga no duplica existencias.
func Apply(ctx context.Context, cat *Catalog, w Writer, adjust *inventory.AdjustStockUseCase) (Result, error) {
	var res Result
	for _, wh := range cat.Warehouses {
		if err := w.SaveWarehouse(ctx, entity.Warehouse{
			ID: wh.ID, CompanyID: cat.CompanyID, Name: wh.Name, Address: wh.Address,
		}); err != nil {
			return res, err
		}
		res.Warehouses++
	}

	costs := make(map[string]decimal.Decimal, len(cat.Products))
	for _, p := range cat.Products {
		if err := w.SaveProduct(ctx, entity.Product{
			ID: p.ID, CompanyID: cat.CompanyID, SKU: p.SKU, Name: p.Name, LotTracked: p.LotTracked, Cost: p.Cost,
		}); err != nil {
			return res, err
		}
		costs[p.ID] = p.Cost
		res.Products++
	}
	for _, l := range cat.Lots {
		if err := w.SaveLot(ctx, entity.Lot{ID: l.ID, ProductID: l.ProductID, Code: l.Code, ExpiresAt: l.ExpiresAt}); err != nil {
			return res, err
		}
		res.Lots++
	}

	actor := entity.Actor{CompanyID: cat.CompanyID, UserID: SeedActor}
	for _, o := range cat.Stock {
		cost := costs[o.ProductID]
		out, err := adjust.Adjust(ctx, actor, inventory.AdjustInput{
			WarehouseID: o.WarehouseID,
			ProductID:   o.ProductID,
			LotID:       o.LotID,
			Direction:   entity.DirectionIn,
			Quantity:    o.Quantity,
			UnitCost:    &cost,
			Reference:   openingRef(o),
		})
		if err != nil {
			return res, fmt.Errorf("apertura %s/%s: %w", o.WarehouseID, o.ProductID, err)
		}
		if out.Replayed {
			res.Replayed++
		} else {
			res.Openings++
		}
	}
	return res, nil
}

func openingRef(o Opening) string {
	ref := "opening:" + o.WarehouseID + ":" + o.ProductID
	if o.LotID != "" {
		ref += ":" + o.LotID
	}
	return ref
}
