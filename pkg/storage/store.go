// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage persists agents, versions, optimization runs and their
// artifact index in SQLite via database/sql.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/jacquard/internal/sqlitedriver"
	"github.com/teradata-labs/jacquard/pkg/types"
)

// ErrNotFound marks lookups that matched no row.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id INTEGER NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	lifecycle TEXT NOT NULL DEFAULT 'draft',
	blueprint_id TEXT NOT NULL,
	blueprint_json TEXT NOT NULL,
	score REAL NOT NULL,
	artifact_path TEXT NOT NULL,
	workflow_snapshot TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(agent_id, version)
);

CREATE TABLE IF NOT EXISTS optimization_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	agent_id INTEGER NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	task_desc TEXT NOT NULL,
	dataset_report_json TEXT NOT NULL DEFAULT '',
	best_blueprint_id TEXT NOT NULL,
	best_train_score REAL NOT NULL,
	best_val_score REAL,
	best_test_score REAL,
	artifact_dir TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_round_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES optimization_runs(run_id) ON DELETE CASCADE,
	round_num INTEGER NOT NULL,
	selected_node_id TEXT NOT NULL,
	selected_blueprint_id TEXT NOT NULL,
	mutation TEXT NOT NULL,
	train_objective REAL NOT NULL,
	val_objective REAL NOT NULL,
	best_train_objective REAL NOT NULL,
	best_val_objective REAL NOT NULL,
	improvement REAL NOT NULL,
	regret REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_artifacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES optimization_runs(run_id) ON DELETE CASCADE,
	artifact_type TEXT NOT NULL,
	uri TEXT NOT NULL,
	checksum TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(run_id, artifact_type)
);

CREATE TABLE IF NOT EXISTS evaluation_cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_version_id INTEGER NOT NULL REFERENCES agent_versions(id) ON DELETE CASCADE,
	case_id TEXT NOT NULL,
	question TEXT NOT NULL,
	expected TEXT NOT NULL,
	output TEXT NOT NULL,
	score REAL NOT NULL,
	rationale TEXT NOT NULL,
	latency_ms REAL NOT NULL DEFAULT 0,
	token_cost REAL NOT NULL DEFAULT 0
);
`

// Store wraps the SQLite handle and repository queries.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path, enables WAL and
// foreign keys, and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// OptimizationRunRecord is one persisted optimization run.
type OptimizationRunRecord struct {
	RunID             string
	AgentName         string
	TaskDesc          string
	DatasetReportJSON string
	BestBlueprintID   string
	BestTrainScore    float64
	BestValScore      *float64
	BestTestScore     *float64
	ArtifactDir       string
}

// ArtifactIndexEntry indexes one artifact written for a run. artifact_type is
// unique per run.
type ArtifactIndexEntry struct {
	ArtifactType string
	URI          string
	Checksum     string
	SizeBytes    int64
}

// VersionInput is everything needed to register a new agent version.
type VersionInput struct {
	AgentName        string
	Blueprint        *types.WorkflowBlueprint
	Evaluation       types.EvaluationSummary
	ArtifactPath     string
	WorkflowSnapshot string
	Lifecycle        types.AgentLifecycle
	Notes            string
	RunID            string
}

// SaveOptimizationResult persists one finished optimization in a single
// transaction: agent upsert, run row, round traces, artifact index, and a
// fresh agent version with its evaluation cases.
func (s *Store) SaveOptimizationResult(
	ctx context.Context,
	run OptimizationRunRecord,
	traces []types.SearchRoundTrace,
	artifacts []ArtifactIndexEntry,
	version VersionInput,
) (types.AgentVersionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	agentID, err := s.getOrCreateAgent(ctx, tx, run.AgentName, "")
	if err != nil {
		return types.AgentVersionRecord{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO optimization_runs
			(run_id, agent_id, task_desc, dataset_report_json, best_blueprint_id,
			 best_train_score, best_val_score, best_test_score, artifact_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, agentID, run.TaskDesc, run.DatasetReportJSON, run.BestBlueprintID,
		run.BestTrainScore, nullable(run.BestValScore), nullable(run.BestTestScore),
		run.ArtifactDir, s.timestamp(),
	); err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("insert optimization run: %w", err)
	}

	for _, trace := range traces {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO optimization_round_traces
				(run_id, round_num, selected_node_id, selected_blueprint_id, mutation,
				 train_objective, val_objective, best_train_objective, best_val_objective,
				 improvement, regret)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, trace.RoundNum, trace.SelectedNodeID, trace.SelectedBlueprintID,
			trace.Mutation, trace.TrainObjective, trace.ValObjective,
			trace.BestTrainObjective, trace.BestValObjective, trace.Improvement, trace.Regret,
		); err != nil {
			return types.AgentVersionRecord{}, fmt.Errorf("insert round trace: %w", err)
		}
	}

	if err := insertArtifacts(ctx, tx, run.RunID, artifacts, s.timestamp()); err != nil {
		return types.AgentVersionRecord{}, err
	}

	record, err := s.createVersion(ctx, tx, agentID, version)
	if err != nil {
		return types.AgentVersionRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("commit optimization result: %w", err)
	}
	s.logger.Info("optimization run persisted",
		zap.String("run_id", run.RunID),
		zap.String("agent", run.AgentName),
		zap.Int("version", record.Version))
	return record, nil
}

// AppendArtifacts indexes additional artifacts for an existing run.
func (s *Store) AppendArtifacts(ctx context.Context, runID string, artifacts []ArtifactIndexEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertArtifacts(ctx, tx, runID, artifacts, s.timestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

func insertArtifacts(ctx context.Context, tx *sql.Tx, runID string, artifacts []ArtifactIndexEntry, createdAt string) error {
	for _, artifact := range artifacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO optimization_artifacts
				(run_id, artifact_type, uri, checksum, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, artifact.ArtifactType, artifact.URI, artifact.Checksum,
			artifact.SizeBytes, createdAt,
		); err != nil {
			return fmt.Errorf("insert artifact %s: %w", artifact.ArtifactType, err)
		}
	}
	return nil
}

func (s *Store) getOrCreateAgent(ctx context.Context, tx *sql.Tx, name, description string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM agents WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup agent: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO agents (name, description, created_at) VALUES (?, ?, ?)`,
		name, description, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("create agent: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("agent insert id: %w", err)
	}
	return id, nil
}

func (s *Store) createVersion(ctx context.Context, tx *sql.Tx, agentID int64, input VersionInput) (types.AgentVersionRecord, error) {
	var latest sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM agent_versions WHERE agent_id = ?`, agentID).Scan(&latest); err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("next version: %w", err)
	}
	version := 1
	if latest.Valid {
		version = int(latest.Int64) + 1
	}

	lifecycle := input.Lifecycle
	if lifecycle == "" {
		lifecycle = types.LifecycleValidated
	}
	blueprintJSON, err := json.Marshal(input.Blueprint)
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("marshal blueprint: %w", err)
	}
	createdAt := s.timestamp()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO agent_versions
			(agent_id, version, lifecycle, blueprint_id, blueprint_json, score,
			 artifact_path, workflow_snapshot, notes, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agentID, version, string(lifecycle), input.Blueprint.BlueprintID, string(blueprintJSON),
		input.Evaluation.MeanScore, input.ArtifactPath, input.WorkflowSnapshot,
		input.Notes, input.RunID, createdAt,
	)
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("insert agent version: %w", err)
	}
	versionRowID, err := result.LastInsertId()
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("version insert id: %w", err)
	}

	for _, c := range input.Evaluation.CaseResults {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evaluation_cases
				(agent_version_id, case_id, question, expected, output, score,
				 rationale, latency_ms, token_cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			versionRowID, c.CaseID, c.Question, c.Expected, c.Output,
			c.Score, c.Rationale, c.LatencyMS, c.TokenCost,
		); err != nil {
			return types.AgentVersionRecord{}, fmt.Errorf("insert evaluation case: %w", err)
		}
	}

	created, _ := time.Parse(time.RFC3339Nano, createdAt)
	return types.AgentVersionRecord{
		AgentName:    input.AgentName,
		Version:      version,
		Lifecycle:    lifecycle,
		BlueprintID:  input.Blueprint.BlueprintID,
		Score:        input.Evaluation.MeanScore,
		ArtifactPath: input.ArtifactPath,
		CreatedAt:    created,
		Notes:        input.Notes,
		RunID:        input.RunID,
	}, nil
}

const versionColumns = `
	SELECT a.name, v.version, v.lifecycle, v.blueprint_id, v.score,
	       v.artifact_path, v.notes, v.run_id, v.created_at
	FROM agent_versions v
	JOIN agents a ON a.id = v.agent_id`

func scanVersion(row interface{ Scan(...any) error }) (types.AgentVersionRecord, error) {
	var record types.AgentVersionRecord
	var lifecycle, createdAt string
	if err := row.Scan(&record.AgentName, &record.Version, &lifecycle, &record.BlueprintID,
		&record.Score, &record.ArtifactPath, &record.Notes, &record.RunID, &createdAt); err != nil {
		return types.AgentVersionRecord{}, err
	}
	record.Lifecycle = types.AgentLifecycle(lifecycle)
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return record, nil
}

// ListVersions returns an agent's versions, newest first. An unknown agent
// yields an empty list.
func (s *Store) ListVersions(ctx context.Context, agentName string) ([]types.AgentVersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, versionColumns+`
		WHERE a.name = ? ORDER BY v.version DESC`, agentName)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]types.AgentVersionRecord, 0)
	for rows.Next() {
		record, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// GetVersion fetches one specific version.
func (s *Store) GetVersion(ctx context.Context, agentName string, version int) (types.AgentVersionRecord, error) {
	row := s.db.QueryRowContext(ctx, versionColumns+`
		WHERE a.name = ? AND v.version = ?`, agentName, version)
	record, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AgentVersionRecord{}, fmt.Errorf("agent version %s@%d: %w", agentName, version, ErrNotFound)
	}
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("get version: %w", err)
	}
	return record, nil
}

// GetVersionBlueprint decodes the stored blueprint JSON for a version.
func (s *Store) GetVersionBlueprint(ctx context.Context, agentName string, version int) (*types.WorkflowBlueprint, error) {
	var blueprintJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT v.blueprint_json FROM agent_versions v
		JOIN agents a ON a.id = v.agent_id
		WHERE a.name = ? AND v.version = ?`, agentName, version).Scan(&blueprintJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent version %s@%d: %w", agentName, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version blueprint: %w", err)
	}
	var blueprint types.WorkflowBlueprint
	if err := json.Unmarshal([]byte(blueprintJSON), &blueprint); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	return &blueprint, nil
}

// UpdateLifecycle sets a version's lifecycle. A transition to DEPLOYED
// demotes any other deployed version of the same agent to VALIDATED inside
// the same transaction.
func (s *Store) UpdateLifecycle(ctx context.Context, agentName string, version int, lifecycle types.AgentLifecycle) (types.AgentVersionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var agentID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM agents WHERE name = ?`, agentName).Scan(&agentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AgentVersionRecord{}, fmt.Errorf("agent %s: %w", agentName, ErrNotFound)
		}
		return types.AgentVersionRecord{}, fmt.Errorf("lookup agent: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE agent_versions SET lifecycle = ?
		WHERE agent_id = ? AND version = ?`, string(lifecycle), agentID, version)
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("update lifecycle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("update lifecycle: %w", err)
	}
	if affected == 0 {
		return types.AgentVersionRecord{}, fmt.Errorf("agent version %s@%d: %w", agentName, version, ErrNotFound)
	}

	if lifecycle == types.LifecycleDeployed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE agent_versions SET lifecycle = ?
			WHERE agent_id = ? AND version != ? AND lifecycle = ?`,
			string(types.LifecycleValidated), agentID, version, string(types.LifecycleDeployed),
		); err != nil {
			return types.AgentVersionRecord{}, fmt.Errorf("demote deployed version: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("commit lifecycle update: %w", err)
	}
	return s.GetVersion(ctx, agentName, version)
}

// ActiveVersion returns the highest deployed version, or ErrNotFound.
func (s *Store) ActiveVersion(ctx context.Context, agentName string) (types.AgentVersionRecord, error) {
	row := s.db.QueryRowContext(ctx, versionColumns+`
		WHERE a.name = ? AND v.lifecycle = ?
		ORDER BY v.version DESC LIMIT 1`, agentName, string(types.LifecycleDeployed))
	record, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AgentVersionRecord{}, fmt.Errorf("no deployed version for %s: %w", agentName, ErrNotFound)
	}
	if err != nil {
		return types.AgentVersionRecord{}, fmt.Errorf("active version: %w", err)
	}
	return record, nil
}

// RunArtifacts lists the artifact index for a run, ordered by type.
func (s *Store) RunArtifacts(ctx context.Context, runID string) ([]ArtifactIndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT artifact_type, uri, checksum, size_bytes
		FROM optimization_artifacts WHERE run_id = ?
		ORDER BY artifact_type`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]ArtifactIndexEntry, 0)
	for rows.Next() {
		var entry ArtifactIndexEntry
		if err := rows.Scan(&entry.ArtifactType, &entry.URI, &entry.Checksum, &entry.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullable(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
