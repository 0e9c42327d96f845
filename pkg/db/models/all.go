package models

import "github.com/google/uuid"

// All lists every persisted model, in dependency order, for schema bootstrapping
// on SQLite and in repository tests.
func All() []any {
	return []any{
		&User{},
		&VerificationRecord{},
		&VerificationStatusHistory{},
		&AddOnPurchase{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
