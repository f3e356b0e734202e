package models

// SaveRequest is a single write sent to the remote store.
type SaveRequest struct {
	EntityID    string `json:"entity_id"`
	FieldID     string `json:"field_id"`
	Value       string `json:"value"`
	OperationID string `json:"operation_id"`
	Version     int64  `json:"version"` // Version версия, на которую опирается запись
}

// SaveResult is the store's answer to a successful write.
type SaveResult struct {
	// ObservedVersion is the version the store held when it applied the
	// write; nil when the store did not report one.
	ObservedVersion *int64 `json:"observed_version,omitempty"`
	// Value is the value the store now holds.
	Value string `json:"value"`
	// Version is the version the store assigned to the written value.
	Version int64 `json:"version"`
}

// RequestFor builds the request for an operation.
func RequestFor(op SaveOperation) SaveRequest {
	return SaveRequest{
		EntityID:    op.EntityID,
		FieldID:     op.FieldID,
		Value:       op.Value,
		OperationID: op.ID,
		Version:     op.Version,
	}
}
