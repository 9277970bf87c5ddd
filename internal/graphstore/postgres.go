package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/model"
	"contractrisk/internal/retrybackoff"
)

// PostgresStore is a Postgres-backed GraphStore: nodes/passages/concepts
// tables, a relations table (with JSONB properties) for RELATES/MENTIONS/
// HAS_CONCEPT edges, and generated tsvector columns + GIN indices powering
// fulltext_node_search / fulltext_passage_search.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to dsn and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("graphstore: parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("graphstore: connect: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			labels TEXT[] NOT NULL DEFAULT '{}',
			numeric_id BIGINT NOT NULL DEFAULT 0,
			ts tsvector GENERATED ALWAYS AS (to_tsvector('english', name || ' ' || array_to_string(labels, ' '))) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS graph_nodes_ts_idx ON graph_nodes USING GIN (ts)`,
		`CREATE TABLE IF NOT EXISTS graph_passages (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			source_id TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			ts tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS graph_passages_ts_idx ON graph_passages USING GIN (ts)`,
		`CREATE TABLE IF NOT EXISTS graph_concepts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS graph_relations (
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL,
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			PRIMARY KEY (source_id, target_id, type)
		)`,
		`CREATE INDEX IF NOT EXISTS graph_relations_src_idx ON graph_relations (source_id, type)`,
		`CREATE INDEX IF NOT EXISTS graph_relations_tgt_idx ON graph_relations (target_id, type)`,
	}
	for _, stmt := range stmts {
		if err := s.execWithRetry(ctx, stmt); err != nil {
			return fmt.Errorf("graphstore: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) execWithRetry(ctx context.Context, sql string, args ...any) error {
	policy := retrybackoff.Policy{MaxAttempts: 5, InitialWait: 250 * time.Millisecond, MaxWait: 4 * time.Second}
	return retrybackoff.Do(ctx, policy, nil, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		return nil
	})
}

func (s *PostgresStore) UpsertNode(ctx context.Context, n model.Node) error {
	return s.execWithRetry(ctx, `
INSERT INTO graph_nodes(id, name, labels, numeric_id) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, labels=EXCLUDED.labels, numeric_id=EXCLUDED.numeric_id
`, n.ID, n.Name, n.Labels, n.NumericID)
}

func (s *PostgresStore) UpsertPassage(ctx context.Context, p model.Passage) error {
	return s.execWithRetry(ctx, `
INSERT INTO graph_passages(id, text, source_id, position) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, source_id=EXCLUDED.source_id, position=EXCLUDED.position
`, p.ID, p.Text, p.SourceID, p.Position)
}

func (s *PostgresStore) UpsertConcept(ctx context.Context, c model.Concept) error {
	return s.execWithRetry(ctx, `
INSERT INTO graph_concepts(id, text) VALUES ($1,$2)
ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text
`, c.ID, c.Text)
}

func (s *PostgresStore) UpsertRelation(ctx context.Context, r model.Relation) error {
	return s.execWithRetry(ctx, `
INSERT INTO graph_relations(source_id, target_id, type, properties) VALUES ($1,$2,$3,$4)
ON CONFLICT (source_id, target_id, type) DO UPDATE SET properties=EXCLUDED.properties
`, r.SourceID, r.TargetID, r.Type, r.Properties)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args []any, scan func(rows rowScanner) error) error {
	policy := retrybackoff.Policy{MaxAttempts: 5, InitialWait: 250 * time.Millisecond, MaxWait: 4 * time.Second}
	return retrybackoff.Do(ctx, policy, nil, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		defer rows.Close()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		return nil
	})
}

// rowScanner is the subset of pgx.Rows used by scan callbacks.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) FulltextNodeSearch(ctx context.Context, q string, k int) ([]model.Node, error) {
	if k <= 0 {
		k = 10
	}
	var out []model.Node
	err := s.query(ctx, `
SELECT id, name, labels, numeric_id
FROM graph_nodes
WHERE ts @@ websearch_to_tsquery('english', $1)
ORDER BY ts_rank(ts, websearch_to_tsquery('english', $1)) DESC, id ASC
LIMIT $2`, []any{q, k}, func(r rowScanner) error {
		var n model.Node
		if err := r.Scan(&n.ID, &n.Name, &n.Labels, &n.NumericID); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

func (s *PostgresStore) FulltextPassageSearch(ctx context.Context, q string, k int) ([]model.Passage, error) {
	if k <= 0 {
		k = 10
	}
	var out []model.Passage
	err := s.query(ctx, `
SELECT id, text, source_id, position
FROM graph_passages
WHERE ts @@ websearch_to_tsquery('english', $1)
ORDER BY ts_rank(ts, websearch_to_tsquery('english', $1)) DESC, id ASC
LIMIT $2`, []any{q, k}, func(r rowScanner) error {
		var p model.Passage
		if err := r.Scan(&p.ID, &p.Text, &p.SourceID, &p.Position); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *PostgresStore) PassageByID(ctx context.Context, id string) (model.Passage, bool, error) {
	var out model.Passage
	found := false
	err := s.query(ctx, `
SELECT id, text, source_id, position
FROM graph_passages
WHERE id = $1`, []any{id}, func(r rowScanner) error {
		if err := r.Scan(&out.ID, &out.Text, &out.SourceID, &out.Position); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		found = true
		return nil
	})
	return out, found, err
}

func (s *PostgresStore) Neighbors(ctx context.Context, id string, depth int, typeFilter string) ([]model.Node, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > 2 {
		depth = 2
	}
	frontier := []string{id}
	visited := map[string]bool{id: true}
	var resultIDs []string
	for hop := 0; hop < depth; hop++ {
		if len(frontier) == 0 {
			break
		}
		sql := `SELECT DISTINCT target_id FROM graph_relations WHERE source_id = ANY($1)`
		args := []any{frontier}
		if typeFilter != "" {
			sql += ` AND type = $2`
			args = append(args, typeFilter)
		}
		var next []string
		err := s.query(ctx, sql, args, func(r rowScanner) error {
			var tgt string
			if err := r.Scan(&tgt); err != nil {
				return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
			}
			if !visited[tgt] {
				visited[tgt] = true
				next = append(next, tgt)
				resultIDs = append(resultIDs, tgt)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		frontier = next
	}
	if len(resultIDs) == 0 {
		return nil, nil
	}
	var out []model.Node
	err := s.query(ctx, `SELECT id, name, labels, numeric_id FROM graph_nodes WHERE id = ANY($1) ORDER BY id ASC`,
		[]any{resultIDs}, func(r rowScanner) error {
			var n model.Node
			if err := r.Scan(&n.ID, &n.Name, &n.Labels, &n.NumericID); err != nil {
				return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
			}
			out = append(out, n)
			return nil
		})
	return out, err
}

func (s *PostgresStore) PassagesForNode(ctx context.Context, nodeID string) ([]model.Passage, error) {
	var out []model.Passage
	err := s.query(ctx, `
SELECT p.id, p.text, p.source_id, p.position
FROM graph_passages p
JOIN graph_relations r ON r.source_id = p.id AND r.type = $1
WHERE r.target_id = $2
ORDER BY p.id ASC`, []any{model.EdgeMentions, nodeID}, func(r rowScanner) error {
		var p model.Passage
		if err := r.Scan(&p.ID, &p.Text, &p.SourceID, &p.Position); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *PostgresStore) ConceptsForText(ctx context.Context, text string) ([]model.Concept, error) {
	var nodeID string
	err := s.query(ctx, `SELECT id FROM graph_nodes WHERE lower(name) = lower($1) LIMIT 1`, []any{text}, func(r rowScanner) error {
		return r.Scan(&nodeID)
	})
	if err != nil || nodeID == "" {
		return nil, err
	}
	var out []model.Concept
	err = s.query(ctx, `
SELECT c.id, c.text
FROM graph_concepts c
JOIN graph_relations r ON r.target_id = c.id AND r.type = $1
WHERE r.source_id = $2
ORDER BY c.id ASC`, []any{model.EdgeHasConcept, nodeID}, func(r rowScanner) error {
		var c model.Concept
		if err := r.Scan(&c.ID, &c.Text); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// PassagesForConcept follows HAS_CONCEPT edges backward from conceptID to
// the node(s) that reference it, then MENTIONS edges from those nodes to
// passages.
func (s *PostgresStore) PassagesForConcept(ctx context.Context, conceptID string) ([]model.Passage, error) {
	var out []model.Passage
	err := s.query(ctx, `
SELECT DISTINCT p.id, p.text, p.source_id, p.position
FROM graph_passages p
JOIN graph_relations m ON m.source_id = p.id AND m.type = $1
JOIN graph_relations hc ON hc.source_id = m.target_id AND hc.type = $2
WHERE hc.target_id = $3
ORDER BY p.id ASC`, []any{model.EdgeMentions, model.EdgeHasConcept, conceptID}, func(r rowScanner) error {
		var p model.Passage
		if err := r.Scan(&p.ID, &p.Text, &p.SourceID, &p.Position); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *PostgresStore) ConceptsByIDs(ctx context.Context, ids []string) ([]model.Concept, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []model.Concept
	err := s.query(ctx, `SELECT id, text FROM graph_concepts WHERE id = ANY($1)`, []any{ids}, func(r rowScanner) error {
		var c model.Concept
		if err := r.Scan(&c.ID, &c.Text); err != nil {
			return fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func (s *PostgresStore) ListDatabases(_ context.Context) ([]string, error) {
	return []string{"postgres"}, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.pool.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM graph_nodes),
		(SELECT count(*) FROM graph_passages),
		(SELECT count(*) FROM graph_concepts),
		(SELECT count(*) FROM graph_relations)`)
	if err := row.Scan(&st.Nodes, &st.Passages, &st.Concepts, &st.Edges); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
	}
	return st, nil
}

var _ GraphStore = (*PostgresStore)(nil)
