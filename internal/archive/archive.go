// Package archive keeps every question ever banked in a sqlite database, so questions
// can be tracked across crawls.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"examcrawler/internal/components/chrono"
	"examcrawler/internal/exam"

	"github.com/mazen160/go-random"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Archive stores questions keyed by (site, signature).
type Archive struct {
	db   *sql.DB
	time chrono.TimeAPI
}

// Open opens (creating if necessary) the archive at `path`, ":memory:" is a valid path.
func Open(ctx context.Context, path string, time chrono.TimeAPI) (Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Archive{}, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return Archive{}, fmt.Errorf("create schema: %w", err)
	}
	return Archive{db: db, time: time}, nil
}

func (a Archive) Close() error {
	return a.db.Close()
}

// Run is a crawl recorded in the archive.
type Run struct {
	ID     string
	New    int
	Banked int
}

// Save records a crawl of `site` that banked `questions` and returns how many of them the
// archive had never seen before. Questions already archived only have their last seen
// time updated.
func (a Archive) Save(ctx context.Context, site string, attempts int, questions []exam.Question) (Run, error) {
	runId, err := random.String(16)
	if err != nil {
		return Run{}, fmt.Errorf("generate run id: %w", err)
	}
	now := a.time.Now().Unix()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"insert into run(id, site, started_at, attempts, banked) values (?, ?, ?, ?, ?)",
		runId, site, now, attempts, len(questions),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	run := Run{ID: runId, Banked: len(questions)}
	for _, q := range questions {
		inserted, err := saveQuestion(ctx, tx, site, runId, now, q)
		if err != nil {
			return Run{}, fmt.Errorf("save question %s: %w", q.Signature, err)
		}
		if inserted {
			run.New++
		}
	}

	err = tx.Commit()
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func saveQuestion(ctx context.Context, tx *sql.Tx, site, runId string, now int64, q exam.Question) (bool, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(
		ctx,
		`insert into question(
			site, signature, server_id, question, choices, answer, media,
			first_seen, last_seen, first_run, last_run
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(site, signature) do nothing`,
		site, q.Signature, q.ID, q.Text, string(choices), q.Answer, q.Media,
		now, now, runId, runId,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	_, err = tx.ExecContext(
		ctx,
		`update question
		set last_seen = ?, last_run = ?, seen_runs = seen_runs + 1
		where site = ? and signature = ?`,
		now, runId, site, q.Signature,
	)
	return false, err
}

// Count returns how many questions of `site` are archived.
func (a Archive) Count(ctx context.Context, site string) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, "select count(*) from question where site = ?", site).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Entry is an archived question along with when it was seen.
type Entry struct {
	Question  exam.Question
	FirstSeen int64
	LastSeen  int64
	SeenRuns  int
}

// Entries returns every archived question of `site` in the order they were first seen.
func (a Archive) Entries(ctx context.Context, site string) ([]Entry, error) {
	rows, err := a.db.QueryContext(
		ctx,
		`select signature, server_id, question, choices, answer, media, first_seen, last_seen, seen_runs
		from question
		where site = ?
		order by first_seen, rowid`,
		site,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var choices string
		err = rows.Scan(
			&e.Question.Signature,
			&e.Question.ID,
			&e.Question.Text,
			&choices,
			&e.Question.Answer,
			&e.Question.Media,
			&e.FirstSeen,
			&e.LastSeen,
			&e.SeenRuns,
		)
		if err != nil {
			return nil, err
		}
		err = json.Unmarshal([]byte(choices), &e.Question.Choices)
		if err != nil {
			return nil, fmt.Errorf("unmarshal choices of %s: %w", e.Question.Signature, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
