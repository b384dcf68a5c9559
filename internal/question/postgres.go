package question

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/blindtest/internal/errors"
	"github.com/victornm/blindtest/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS question_sets (
	set_name    TEXT PRIMARY KEY,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
	set_name TEXT    NOT NULL REFERENCES question_sets (set_name) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name     TEXT    NOT NULL,
	PRIMARY KEY (set_name, position)
);

CREATE TABLE IF NOT EXISTS question_answers (
	set_name TEXT    NOT NULL,
	position INTEGER NOT NULL,
	slot     INTEGER NOT NULL,
	is_group BOOLEAN NOT NULL,
	aliases  TEXT[]  NOT NULL,
	PRIMARY KEY (set_name, position, slot),
	FOREIGN KEY (set_name, position) REFERENCES questions (set_name, position) ON DELETE CASCADE
);`

// PostgresStore keeps question sets in Postgres.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables of the store if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate question store: %w", err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context, set string) ([]game.Question, error) {
	const stmt = `
SELECT q.position, a.slot, q.name, a.is_group, a.aliases
FROM questions q
JOIN question_answers a ON a.set_name = q.set_name AND a.position = q.position
WHERE q.set_name = $1
ORDER BY q.position, a.slot;`

	rows, err := s.db.Query(ctx, stmt, set)
	if err != nil {
		return nil, fmt.Errorf("query question set %s: %w", set, err)
	}

	rs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (answerRow, error) {
		var x answerRow
		err := r.Scan(&x.Position, &x.Slot, &x.Name, &x.IsGroup, &x.Aliases)
		return x, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan question set %s: %w", set, err)
	}

	if len(rs) == 0 {
		return nil, ErrSetNotFound.With(errors.WithMessagef("question set %q not found", set))
	}

	return fromRows(rs).Questions()
}

// Import replaces the question set named set with questions.
func (s *PostgresStore) Import(ctx context.Context, set string, questions []game.Question) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		delSetStmt      = `DELETE FROM question_sets WHERE set_name = $1;`
		insSetStmt      = `INSERT INTO question_sets (set_name) VALUES ($1);`
		insQuestionStmt = `INSERT INTO questions (set_name, position, name) VALUES ($1, $2, $3);`
		insAnswerStmt   = `INSERT INTO question_answers (set_name, position, slot, is_group, aliases) VALUES ($1, $2, $3, $4, $5);`
	)

	if _, err = tx.Exec(ctx, delSetStmt, set); err != nil {
		return fmt.Errorf("delete question set: %w", err)
	}
	if _, err = tx.Exec(ctx, insSetStmt, set); err != nil {
		return fmt.Errorf("insert question set: %w", err)
	}

	b := &pgx.Batch{}
	for _, r := range toRows(questions) {
		if r.Slot == 0 {
			b.Queue(insQuestionStmt, set, r.Position, r.Name)
		}
		b.Queue(insAnswerStmt, set, r.Position, r.Slot, r.IsGroup, r.Aliases)
	}
	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}

// answerRow is one answer slot of a stored question, joined with the question.
type answerRow struct {
	Position int
	Slot     int
	Name     string
	IsGroup  bool
	Aliases  []string
}

// toRows flattens questions, one row per answer slot. Questions without slot
// produce no row.
func toRows(questions []game.Question) []answerRow {
	var rs []answerRow
	for i, q := range questions {
		for j, slot := range q.Slots {
			rs = append(rs, answerRow{
				Position: i,
				Slot:     j,
				Name:     q.Name,
				IsGroup:  slot.IsGroup(),
				Aliases:  slot.Aliases(),
			})
		}
	}

	return rs
}

// fromRows groups rows sorted by position then slot back into questions.
func fromRows(rs []answerRow) Document {
	var (
		doc  Document
		last = -1
	)
	for _, r := range rs {
		if len(doc) == 0 || r.Position != last {
			doc = append(doc, DocumentQuestion{Name: r.Name})
			last = r.Position
		}

		spec := AnswerSpec{Aliases: r.Aliases}
		if !r.IsGroup && len(r.Aliases) == 1 {
			spec = AnswerSpec{Single: r.Aliases[0]}
		}

		cur := &doc[len(doc)-1]
		cur.Answer = append(cur.Answer, spec)
	}

	return doc
}
