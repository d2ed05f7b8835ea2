package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/vecmath"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sqlx.DB
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// initializes the schema. The parent directory is created if missing.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now, logger: slog.Default()}, nil
}

// SetLogger replaces the logger used for store warnings. Nil restores
// slog.Default().
func (s *SQLiteStore) SetLogger(l *slog.Logger) {
	s.logger = logging.OrDefault(l)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type leaderRow struct {
	models.LeaderProfile
	CreatedAt string `db:"created_at"`
}

const leaderColumns = `id, name, aggression, diplomacy, risk_tolerance, domestic_pressure, escalation_threshold, created_at`

// ListLeaders returns every profile ordered by name.
func (s *SQLiteStore) ListLeaders(ctx context.Context) ([]models.LeaderProfile, error) {
	var rows []leaderRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+leaderColumns+` FROM leader_profiles ORDER BY name`); err != nil {
		return nil, fmt.Errorf("listing leaders: %w", err)
	}

	leaders := make([]models.LeaderProfile, len(rows))
	for i, r := range rows {
		leaders[i] = r.LeaderProfile
	}
	return leaders, nil
}

// GetLeaderByName returns the profile named name, or ErrNotFound.
func (s *SQLiteStore) GetLeaderByName(ctx context.Context, name string) (models.LeaderProfile, error) {
	var row leaderRow
	err := s.db.GetContext(ctx, &row, `SELECT `+leaderColumns+` FROM leader_profiles WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LeaderProfile{}, fmt.Errorf("leader %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.LeaderProfile{}, fmt.Errorf("getting leader %q: %w", name, err)
	}
	return row.LeaderProfile, nil
}

// UpsertLeader inserts p unless its name is already taken.
func (s *SQLiteStore) UpsertLeader(ctx context.Context, p models.LeaderProfile) (models.LeaderProfile, bool, error) {
	if err := p.Validate(); err != nil {
		return models.LeaderProfile{}, false, err
	}

	existing, err := s.GetLeaderByName(ctx, p.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.LeaderProfile{}, false, err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	row := leaderRow{LeaderProfile: p, CreatedAt: formatTime(s.now())}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO leader_profiles (`+leaderColumns+`)
		VALUES (:id, :name, :aggression, :diplomacy, :risk_tolerance, :domestic_pressure, :escalation_threshold, :created_at)`, row)
	if err != nil {
		return models.LeaderProfile{}, false, fmt.Errorf("inserting leader %q: %w", p.Name, err)
	}
	return p, true, nil
}

// InsertEvent stores an event and its embedding.
func (s *SQLiteStore) InsertEvent(ctx context.Context, text string, embedding []float32) (models.StoredEvent, error) {
	ev := models.StoredEvent{
		ID:        uuid.New().String(),
		Text:      text,
		Embedding: embedding,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, text, embedding, created_at) VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Text, vecmath.Encode(embedding), formatTime(ev.CreatedAt))
	if err != nil {
		return models.StoredEvent{}, fmt.Errorf("inserting event: %w", err)
	}
	return ev, nil
}

// CountEvents returns the number of stored events.
func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// NearestEvents scans every embedded event and ranks it by cosine distance.
func (s *SQLiteStore) NearestEvents(ctx context.Context, embedding []float32, limit int) ([]models.Neighbor, error) {
	var rows []struct {
		ID        string `db:"id"`
		Text      string `db:"text"`
		Embedding []byte `db:"embedding"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, text, embedding FROM events WHERE embedding IS NOT NULL ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("loading event embeddings: %w", err)
	}

	candidates := make([]models.StoredEvent, 0, len(rows))
	for _, r := range rows {
		vec, err := vecmath.Decode(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", r.ID, err)
		}
		candidates = append(candidates, models.StoredEvent{ID: r.ID, Text: r.Text, Embedding: vec})
	}

	return rankNearest(s.logger, embedding, candidates, limit)
}

// CreateSimulation records a new run for eventID.
func (s *SQLiteStore) CreateSimulation(ctx context.Context, eventID string) (string, time.Time, error) {
	id := uuid.New().String()
	createdAt := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, event_id, created_at) VALUES (?, ?, ?)`,
		id, eventID, formatTime(createdAt))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating simulation: %w", err)
	}
	return id, createdAt, nil
}

// SaveResults writes all judgments in one transaction, resolving each
// leader's id by name.
func (s *SQLiteStore) SaveResults(ctx context.Context, simulationID string, judgments []models.Judgment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, j := range judgments {
		var leaderID string
		err := tx.GetContext(ctx, &leaderID, `SELECT id FROM leader_profiles WHERE name = ?`, j.Leader)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("leader %q: %w", j.Leader, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("resolving leader %q: %w", j.Leader, err)
		}

		similar, err := json.Marshal(nonNil(j.SimilarEvents))
		if err != nil {
			return fmt.Errorf("encoding similar events: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO leader_sim_results
			(simulation_id, leader_id, escalation_score, reaction, rationale, similar_events, outcome, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			simulationID, leaderID, j.EscalationScore, j.Reaction, j.Rationale, string(similar), string(j.Outcome), j.Error); err != nil {
			return fmt.Errorf("saving result for %q: %w", j.Leader, err)
		}
	}

	return tx.Commit()
}

// History returns the latest simulations with their average escalation.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]models.SimulationSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	var rows []struct {
		ID            string  `db:"id"`
		EventText     string  `db:"event_text"`
		CreatedAt     string  `db:"created_at"`
		AvgEscalation float64 `db:"avg_escalation"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT s.id, e.text AS event_text, s.created_at,
		       COALESCE(AVG(CASE WHEN r.outcome != 'unavailable' THEN r.escalation_score END), 0) AS avg_escalation
		FROM simulations s
		JOIN events e ON e.id = s.event_id
		LEFT JOIN leader_sim_results r ON r.simulation_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC, s.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	history := make([]models.SimulationSummary, len(rows))
	for i, r := range rows {
		createdAt, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("simulation %s: %w", r.ID, err)
		}
		history[i] = models.SimulationSummary{
			SimulationID:  r.ID,
			EventText:     r.EventText,
			CreatedAt:     createdAt,
			AvgEscalation: models.Round(r.AvgEscalation, 2),
		}
	}
	return history, nil
}

// GetSimulation returns a stored run and its judgments.
func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (models.SimulationResponse, error) {
	var head struct {
		EventText string `db:"event_text"`
		CreatedAt string `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &head, `
		SELECT e.text AS event_text, s.created_at
		FROM simulations s JOIN events e ON e.id = s.event_id
		WHERE s.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SimulationResponse{}, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("getting simulation %s: %w", id, err)
	}

	createdAt, err := parseTime(head.CreatedAt)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("simulation %s: %w", id, err)
	}

	var rows []struct {
		Leader          string  `db:"leader"`
		EscalationScore float64 `db:"escalation_score"`
		Reaction        string  `db:"reaction"`
		Rationale       string  `db:"rationale"`
		SimilarEvents   string  `db:"similar_events"`
		Outcome         string  `db:"outcome"`
		Error           string  `db:"error"`
	}
	err = s.db.SelectContext(ctx, &rows, `
		SELECT l.name AS leader, r.escalation_score, r.reaction, r.rationale,
		       r.similar_events, r.outcome, r.error
		FROM leader_sim_results r JOIN leader_profiles l ON l.id = r.leader_id
		WHERE r.simulation_id = ?
		ORDER BY r.rowid`, id)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("loading results for %s: %w", id, err)
	}

	results := make([]models.Judgment, len(rows))
	for i, r := range rows {
		var similar []string
		if err := json.Unmarshal([]byte(r.SimilarEvents), &similar); err != nil {
			return models.SimulationResponse{}, fmt.Errorf("decoding similar events: %w", err)
		}
		results[i] = models.Judgment{
			Leader:          r.Leader,
			EscalationScore: r.EscalationScore,
			Reaction:        r.Reaction,
			Rationale:       r.Rationale,
			SimilarEvents:   nonNil(similar),
			Outcome:         models.Outcome(r.Outcome),
			Error:           r.Error,
		}
	}

	return models.SimulationResponse{
		SimulationID: id,
		EventText:    head.EventText,
		CreatedAt:    createdAt,
		Results:      results,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
