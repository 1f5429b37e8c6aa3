package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/assessment/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exchanges (
	conversation_id TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	message_id      TEXT NOT NULL,
	question        TEXT NOT NULL,
	answer          TEXT NOT NULL,
	response        TEXT NOT NULL,
	answered_at     DATETIME NOT NULL,
	PRIMARY KEY (conversation_id, seq)
);

CREATE TABLE IF NOT EXISTS response_memories (
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	memory          TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (conversation_id, message_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	result          TEXT NOT NULL,
	mode            TEXT NOT NULL DEFAULT '',
	average_score   REAL NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, conversation_id)
);

CREATE INDEX IF NOT EXISTS idx_exchanges_message_id ON exchanges(message_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_conversation_id ON evaluations(conversation_id);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendExchange(ctx context.Context, conversationID string, rec ExchangeRecord) error {
	questionJSON, answerJSON, err := marshalExchange(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: append exchange")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (conversation_id, seq, message_id, question, answer, response, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (conversation_id, seq) DO UPDATE SET
		   message_id = excluded.message_id,
		   question = excluded.question,
		   answer = excluded.answer,
		   response = excluded.response,
		   answered_at = excluded.answered_at`,
		conversationID, rec.Seq, rec.MessageID, string(questionJSON), string(answerJSON),
		rec.Response, rec.AnsweredAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append exchange %s/%d", conversationID, rec.Seq)
}

func (s *SQLiteStore) TruncateExchanges(ctx context.Context, conversationID string, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin truncate")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM response_memories WHERE conversation_id = ? AND message_id IN
		 (SELECT message_id FROM exchanges WHERE conversation_id = ? AND seq >= ?)`,
		conversationID, conversationID, keep,
	); err != nil {
		return eris.Wrapf(err, "sqlite: truncate memories %s", conversationID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM exchanges WHERE conversation_id = ? AND seq >= ?`,
		conversationID, keep,
	); err != nil {
		return eris.Wrapf(err, "sqlite: truncate exchanges %s", conversationID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit truncate")
}

func (s *SQLiteStore) ListExchanges(ctx context.Context, conversationID string) ([]ExchangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, message_id, question, answer, response, answered_at
		 FROM exchanges WHERE conversation_id = ? ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exchanges")
	}
	defer rows.Close()

	var out []ExchangeRecord
	for rows.Next() {
		var (
			rec          ExchangeRecord
			question     string
			answer       string
			answeredTime time.Time
		)
		if err := rows.Scan(&rec.Seq, &rec.MessageID, &question, &answer, &rec.Response, &answeredTime); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan exchange")
		}
		if err := unmarshalExchange(&rec, []byte(question), []byte(answer)); err != nil {
			return nil, eris.Wrap(err, "sqlite: list exchanges")
		}
		rec.AnsweredAt = answeredTime.UTC()
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list exchanges iterate")
}

func (s *SQLiteStore) AppendResponseMemory(ctx context.Context, conversationID, messageID string, mem model.ResponseMemory) error {
	mem.MessageID = messageID
	memJSON, err := json.Marshal(mem)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal memory")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO response_memories (conversation_id, message_id, memory) VALUES (?, ?, ?)
		 ON CONFLICT (conversation_id, message_id) DO UPDATE SET memory = excluded.memory`,
		conversationID, messageID, string(memJSON),
	)
	return eris.Wrapf(err, "sqlite: append memory %s/%s", conversationID, messageID)
}

func (s *SQLiteStore) ListResponseMemories(ctx context.Context, conversationID string) ([]model.ResponseMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.memory FROM response_memories m
		 JOIN exchanges e ON e.conversation_id = m.conversation_id AND e.message_id = m.message_id
		 WHERE m.conversation_id = ? ORDER BY e.seq`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list memories")
	}
	defer rows.Close()

	var out []model.ResponseMemory
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan memory")
		}
		var mem model.ResponseMemory
		if err := json.Unmarshal([]byte(raw), &mem); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal memory")
		}
		out = append(out, mem)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list memories iterate")
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, userID, conversationID string, res model.EvaluationResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evaluation")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (user_id, conversation_id, result, mode, average_score, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, conversation_id) DO UPDATE SET
		   result = excluded.result,
		   mode = excluded.mode,
		   average_score = excluded.average_score,
		   updated_at = excluded.updated_at`,
		userID, conversationID, string(resultJSON), res.Mode, res.AverageScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save evaluation %s", conversationID)
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, userID, conversationID string) (*model.EvaluationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result FROM evaluations WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID,
	)
	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: evaluation %s", conversationID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get evaluation")
	}
	var res model.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
	}
	return &res, nil
}

func marshalExchange(rec ExchangeRecord) (question, answer []byte, err error) {
	if question, err = json.Marshal(rec.Question); err != nil {
		return nil, nil, eris.Wrap(err, "marshal question")
	}
	if answer, err = json.Marshal(rec.Answer); err != nil {
		return nil, nil, eris.Wrap(err, "marshal answer")
	}
	return question, answer, nil
}

func unmarshalExchange(rec *ExchangeRecord, question, answer []byte) error {
	if err := json.Unmarshal(question, &rec.Question); err != nil {
		return eris.Wrap(err, "unmarshal question")
	}
	if err := json.Unmarshal(answer, &rec.Answer); err != nil {
		return eris.Wrap(err, "unmarshal answer")
	}
	return nil
}
