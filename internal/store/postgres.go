package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgAppendExchange = `INSERT INTO exchanges (conversation_id, seq, message_id, question, answer, response, answered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (conversation_id, seq) DO UPDATE SET
  message_id = EXCLUDED.message_id, question = EXCLUDED.question, answer = EXCLUDED.answer,
  response = EXCLUDED.response, answered_at = EXCLUDED.answered_at`
	pgTruncateExchanges = `WITH dropped AS (
  DELETE FROM exchanges WHERE conversation_id = $1 AND seq >= $2 RETURNING message_id
)
DELETE FROM response_memories WHERE conversation_id = $1 AND message_id IN (SELECT message_id FROM dropped)`
	pgListExchanges = `SELECT seq, message_id, question, answer, response, answered_at
FROM exchanges WHERE conversation_id = $1 ORDER BY seq`
	pgAppendMemory = `INSERT INTO response_memories (conversation_id, message_id, memory) VALUES ($1, $2, $3)
ON CONFLICT (conversation_id, message_id) DO UPDATE SET memory = EXCLUDED.memory`
	pgListMemories = `SELECT m.memory FROM response_memories m
JOIN exchanges e ON e.conversation_id = m.conversation_id AND e.message_id = m.message_id
WHERE m.conversation_id = $1 ORDER BY e.seq`
	pgSaveEvaluation = `INSERT INTO evaluations (user_id, conversation_id, result, mode, average_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, conversation_id) DO UPDATE SET
  result = EXCLUDED.result, mode = EXCLUDED.mode,
  average_score = EXCLUDED.average_score, updated_at = EXCLUDED.updated_at`
	pgGetEvaluation = `SELECT result FROM evaluations WHERE user_id = $1 AND conversation_id = $2`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"append_exchange":    pgAppendExchange,
	"truncate_exchanges": pgTruncateExchanges,
	"list_exchanges":     pgListExchanges,
	"append_memory":      pgAppendMemory,
	"list_memories":      pgListMemories,
	"save_evaluation":    pgSaveEvaluation,
	"get_evaluation":     pgGetEvaluation,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// An undefined table (42P01) means migrate has not run yet.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					return nil
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS exchanges (
	conversation_id TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	message_id      TEXT NOT NULL,
	question        JSONB NOT NULL,
	answer          JSONB NOT NULL,
	response        TEXT NOT NULL,
	answered_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (conversation_id, seq)
);

CREATE TABLE IF NOT EXISTS response_memories (
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	memory          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (conversation_id, message_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	result          JSONB NOT NULL,
	mode            TEXT NOT NULL DEFAULT '',
	average_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, conversation_id)
);

CREATE INDEX IF NOT EXISTS idx_exchanges_message_id ON exchanges(message_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_conversation_id ON evaluations(conversation_id);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendExchange(ctx context.Context, conversationID string, rec ExchangeRecord) error {
	questionJSON, answerJSON, err := marshalExchange(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: append exchange")
	}
	_, err = s.pool.Exec(ctx, pgAppendExchange,
		conversationID, rec.Seq, rec.MessageID, questionJSON, answerJSON, rec.Response, rec.AnsweredAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: append exchange %s/%d", conversationID, rec.Seq)
}

func (s *PostgresStore) TruncateExchanges(ctx context.Context, conversationID string, keep int) error {
	_, err := s.pool.Exec(ctx, pgTruncateExchanges, conversationID, keep)
	return eris.Wrapf(err, "postgres: truncate exchanges %s", conversationID)
}

func (s *PostgresStore) ListExchanges(ctx context.Context, conversationID string) ([]ExchangeRecord, error) {
	rows, err := s.pool.Query(ctx, pgListExchanges, conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exchanges")
	}
	defer rows.Close()

	var out []ExchangeRecord
	for rows.Next() {
		var (
			rec              ExchangeRecord
			question, answer []byte
		)
		if err := rows.Scan(&rec.Seq, &rec.MessageID, &question, &answer, &rec.Response, &rec.AnsweredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exchange")
		}
		if err := unmarshalExchange(&rec, question, answer); err != nil {
			return nil, eris.Wrap(err, "postgres: list exchanges")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list exchanges iterate")
}

func (s *PostgresStore) AppendResponseMemory(ctx context.Context, conversationID, messageID string, mem model.ResponseMemory) error {
	mem.MessageID = messageID
	memJSON, err := json.Marshal(mem)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal memory")
	}
	_, err = s.pool.Exec(ctx, pgAppendMemory, conversationID, messageID, memJSON)
	return eris.Wrapf(err, "postgres: append memory %s/%s", conversationID, messageID)
}

func (s *PostgresStore) ListResponseMemories(ctx context.Context, conversationID string) ([]model.ResponseMemory, error) {
	rows, err := s.pool.Query(ctx, pgListMemories, conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list memories")
	}
	defer rows.Close()

	var out []model.ResponseMemory
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan memory")
		}
		var mem model.ResponseMemory
		if err := json.Unmarshal(raw, &mem); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal memory")
		}
		out = append(out, mem)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list memories iterate")
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, userID, conversationID string, res model.EvaluationResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evaluation")
	}
	_, err = s.pool.Exec(ctx, pgSaveEvaluation,
		userID, conversationID, resultJSON, res.Mode, res.AverageScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save evaluation %s", conversationID)
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, userID, conversationID string) (*model.EvaluationResult, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, pgGetEvaluation, userID, conversationID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: evaluation %s", conversationID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get evaluation")
	}
	var res model.EvaluationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
	}
	return &res, nil
}
