package cdc

const (
	OperationTypeInsert  = "insert"
	OperationTypeReplace = "replace"
	OperationTypeUpdate  = "update"
	OperationTypeDelete  = "delete"
)

// Event is a change stream event of a single collection as published by the mongo kafka connector
type Event[Document any] struct {
	Offset        int64     `json:"-" bson:"-"`
	OperationType string    `json:"operationType" bson:"operationType"`
	FullDocument  *Document `json:"fullDocument" bson:"fullDocument"`
}

// IsCreate is true for events of newly written documents
func (e Event[Document]) IsCreate() bool {
	return (e.OperationType == OperationTypeInsert || e.OperationType == OperationTypeReplace) && e.FullDocument != nil
}
