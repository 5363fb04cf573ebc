package app

// StoreOperation tracks a CLI operation that may mutate the store.
// Operations are created in memory with ID=0. Only store-mutating commands
// persist them (giving them an auto-increment ID from the database).
type StoreOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewStoreOperation creates a new in-memory store operation.
func NewStoreOperation(operation, parameters string) *StoreOperation {
	return &StoreOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the store.
func (op *StoreOperation) Persisted() bool {
	return op.ID != 0
}
