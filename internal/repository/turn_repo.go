package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"pet-persona/internal/domain"
)

type TurnRepository interface {
	SaveTurn(ctx context.Context, turn domain.ConversationTurn) error
	ListTurns(ctx context.Context, subjectID, sessionID string, limit int) ([]domain.ConversationTurn, error)
}

type PgTurnRepository struct {
	pool *pgxpool.Pool
}

func NewPgTurnRepository(pool *pgxpool.Pool) *PgTurnRepository {
	return &PgTurnRepository{pool: pool}
}

func (r *PgTurnRepository) SaveTurn(ctx context.Context, turn domain.ConversationTurn) error {
	const query = `
		INSERT INTO conversation_turns (id, subject_id, session_id, user_text, reply, intent, evidence, constraints, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		turn.ID,
		turn.SubjectID,
		turn.SessionID,
		turn.UserText,
		turn.Reply,
		string(turn.Intent),
		nonNil(turn.Evidence),
		nonNil(turn.Constraints),
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// ListTurns devuelve los ultimos limit turnos de la sesion, del mas viejo al mas nuevo.
func (r *PgTurnRepository) ListTurns(ctx context.Context, subjectID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, subject_id, session_id, user_text, reply, intent, evidence, constraints, created_at
		FROM (
			SELECT *
			FROM conversation_turns
			WHERE subject_id = $1 AND session_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, subjectID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return collect(rows, scanTurn)
}

func scanTurn(row pgxRow) (domain.ConversationTurn, error) {
	var t domain.ConversationTurn
	var in string
	if err := row.Scan(&t.ID, &t.SubjectID, &t.SessionID, &t.UserText, &t.Reply, &in, &t.Evidence, &t.Constraints, &t.CreatedAt); err != nil {
		return domain.ConversationTurn{}, err
	}
	t.Intent = domain.Intent(in)
	t.Evidence = nonNil(t.Evidence)
	return t, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// MemoryTurnRepository guarda turnos en memoria.
type MemoryTurnRepository struct {
	mu    sync.Mutex
	turns map[string][]domain.ConversationTurn
}

func NewMemoryTurnRepository() *MemoryTurnRepository {
	return &MemoryTurnRepository{turns: make(map[string][]domain.ConversationTurn)}
}

func (r *MemoryTurnRepository) SaveTurn(_ context.Context, turn domain.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := turn.SubjectID + "\x00" + turn.SessionID
	r.turns[key] = append(r.turns[key], turn)
	return nil
}

func (r *MemoryTurnRepository) ListTurns(_ context.Context, subjectID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	turns := r.turns[subjectID+"\x00"+sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.ConversationTurn{}, turns...), nil
}
