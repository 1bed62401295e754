package domain

import "time"

// Intent es la categoria comunicativa de un mensaje.
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentFarewell      Intent = "farewell"
	IntentQuestion      Intent = "question"
	IntentBonding       Intent = "bonding"
	IntentPlay          Intent = "play"
	IntentFood          Intent = "food"
	IntentTraining      Intent = "training"
	IntentBehavior      Intent = "behavior"
	IntentHealth        Intent = "health"
	IntentAffection     Intent = "affection"
	IntentCommand       Intent = "command"
	IntentStatement     Intent = "statement"
	IntentUnknown       Intent = "unknown"
	IntentSafetyConcern Intent = "safety_concern"
)

// ConversationTurn es un turno de dialogo ya filtrado.
type ConversationTurn struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserText    string    `json:"user_text"`
	Reply       string    `json:"reply"`
	Intent      Intent    `json:"intent"`
	Evidence    []string  `json:"evidence"`
	Constraints []string  `json:"constraints,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
