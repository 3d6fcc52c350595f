package entity

// Actor contexto explícito de quien ejecuta la operación (resuelto por la capa de identidad).
type Actor struct {
	CompanyID string
	UserID    string
}
