// Package memory implementa los repositorios y el TxRunner en memoria.
// Se usa en pruebas y con STORE_DRIVER=memory.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Nombres de operación para InjectFault.
const (
	OpTransferCreate    = "transfers.create"
	OpTransferUpdate    = "transfers.update"
	OpTransferDelete    = "transfers.delete"
	OpTransferOrphan    = "transfers.mark_orphaned"
	OpLinesCreate       = "lines.create_batch"
	OpLinesUpdate       = "lines.update_received"
	OpLinesDelete       = "lines.delete"
	OpMovementAppend    = "movements.append"
	OpLevelSave         = "levels.save"
	OpProductUpdateCost = "products.update_cost"
)

type data struct {
	transfers  map[string]entity.Transfer
	lines      map[string][]entity.TransferLine
	movements  []entity.StockMovement
	refs       map[entity.MovementRef]int
	levels     map[entity.StockKey]entity.StockLevel
	products   map[string]entity.Product
	warehouses map[string]entity.Warehouse
	lots       map[string]entity.Lot
}

func newData() *data {
	return &data{
		transfers:  map[string]entity.Transfer{},
		lines:      map[string][]entity.TransferLine{},
		refs:       map[entity.MovementRef]int{},
		levels:     map[entity.StockKey]entity.StockLevel{},
		products:   map[string]entity.Product{},
		warehouses: map[string]entity.Warehouse{},
		lots:       map[string]entity.Lot{},
	}
}

// clone copia superficial por mapa; las líneas se copian por traslado.
func (d *data) clone() *data {
	c := &data{
		transfers:  maps.Clone(d.transfers),
		lines:      make(map[string][]entity.TransferLine, len(d.lines)),
		movements:  slices.Clone(d.movements),
		refs:       maps.Clone(d.refs),
		levels:     maps.Clone(d.levels),
		products:   maps.Clone(d.products),
		warehouses: maps.Clone(d.warehouses),
		lots:       maps.Clone(d.lots),
	}
	for k, v := range d.lines {
		c.lines[k] = slices.Clone(v)
	}
	return c
}

type fault struct {
	err   error
	times int // <0 = siempre
}

// Store almacenamiento en memoria. Las transacciones se serializan (txMu) y trabajan
// sobre una copia que reemplaza a los datos confirmados solo si fn termina sin error.
// Las lecturas fuera de transacción ven siempre el último estado confirmado.
type Store struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	d      *data

	faultMu sync.Mutex
	faults  map[string]*fault
}

// NewStore crea un almacenamiento vacío.
func NewStore() *Store {
	return &Store{d: newData(), faults: map[string]*fault{}}
}

// InjectFault hace que la operación op falle con err las próximas times veces (times<0: siempre).
func (s *Store) InjectFault(op string, err error, times int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = &fault{err: err, times: times}
}

// ClearFaults elimina todas las fallas inyectadas.
func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = map[string]*fault{}
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	f, ok := s.faults[op]
	if !ok || f.times == 0 {
		return nil
	}
	if f.times > 0 {
		f.times--
	}
	return f.err
}

// scope acceso a datos: confirmado (tx=nil) o copia de una transacción en curso.
type scope struct {
	st *Store
	tx *data
}

func (sc scope) read(fn func(d *data) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.st.dataMu.RLock()
	defer sc.st.dataMu.RUnlock()
	return fn(sc.st.d)
}

func (sc scope) write(op string, fn func(d *data) error) error {
	if err := sc.st.fault(op); err != nil {
		return err
	}
	if sc.tx != nil {
		return fn(sc.tx)
	}
	// Escritura autónoma: equivale a una transacción de una sola sentencia
	sc.st.txMu.Lock()
	defer sc.st.txMu.Unlock()
	snap := sc.st.snapshot()
	if err := fn(snap); err != nil {
		return err
	}
	sc.st.commit(snap)
	return nil
}

func (s *Store) snapshot() *data {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.d.clone()
}

func (s *Store) commit(d *data) {
	s.dataMu.Lock()
	s.d = d
	s.dataMu.Unlock()
}

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, st inventory.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	sc := scope{st: s, tx: snap}
	if err := fn(ctx, sc.stores()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(snap)
	return nil
}

var _ inventory.TxRunner = (*Store)(nil)

func (sc scope) stores() inventory.Stores {
	return inventory.Stores{
		Transfers: &TransferRepo{sc: sc},
		Lines:     &TransferLineRepo{sc: sc},
		Movements: &StockMovementRepo{sc: sc},
		Levels:    &StockLevelRepo{sc: sc},
		Products:  &ProductRepo{sc: sc},
	}
}

// Repositorios fuera de transacción (equivalente al pool).

func (s *Store) Transfers() *TransferRepo      { return &TransferRepo{sc: scope{st: s}} }
func (s *Store) Lines() *TransferLineRepo      { return &TransferLineRepo{sc: scope{st: s}} }
func (s *Store) Movements() *StockMovementRepo { return &StockMovementRepo{sc: scope{st: s}} }
func (s *Store) Levels() *StockLevelRepo       { return &StockLevelRepo{sc: scope{st: s}} }
func (s *Store) Products() *ProductRepo        { return &ProductRepo{sc: scope{st: s}} }
func (s *Store) Warehouses() *WarehouseRepo    { return &WarehouseRepo{sc: scope{st: s}} }
func (s *Store) Lots() *LotRepo                { return &LotRepo{sc: scope{st: s}} }
