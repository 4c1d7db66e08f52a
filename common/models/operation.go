package models

// OperationKind names a write the migration would issue against the target
type OperationKind string

const (
	OpCreateType         OperationKind = "create_type"
	OpCreateStage        OperationKind = "create_stage"
	OpCreateField        OperationKind = "create_field"
	OpSetMoveConstraints OperationKind = "set_move_constraints"
	OpCreateEntity       OperationKind = "create_entity"
	OpUpdateRelations    OperationKind = "update_relations"
)

// MigrationOperation is one recorded write of a dry run
type MigrationOperation struct {
	Kind     OperationKind `json:"operation"`
	Endpoint string        `json:"endpoint"`
	Method   string        `json:"method"`
	Payload  any           `json:"data"`
}
