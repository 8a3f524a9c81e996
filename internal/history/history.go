// Package history keeps a snapshot of every member's pathway progress per run so
// progress can be followed over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clubprogress/internal/model"

	"github.com/google/uuid"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens (creating if needed) the sqlite database at path and applies the schema.
func Open(ctx context.Context, path string) (Store, func() error, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, nil, err
	}
	_, err = database.ExecContext(ctx, Schema)
	if err != nil {
		database.Close()
		return Store{}, nil, fmt.Errorf("apply schema: %w", err)
	}
	return NewStore(database), database.Close, nil
}

type Run struct {
	Id          string
	Time        time.Time
	ClubId      string
	ClubName    string
	MemberCount int
}

// Push records the current pathways of every member of club as a new run and returns
// the run's id.
func (s Store) Push(ctx context.Context, at time.Time, club *model.Club) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runId := uuid.NewString()
	_, err = tx.ExecContext(
		ctx,
		`insert into run(id, time, club_id, club_name, member_count) values (?, ?, ?, ?, ?)`,
		runId, at.Unix(), club.ClubId, club.ClubName, len(club.Members),
	)
	if err != nil {
		return "", err
	}

	for _, member := range club.OrderedMembers() {
		for _, p := range member.CurrentPathways {
			_, err := tx.ExecContext(
				ctx,
				`insert into pathway_snapshot(run_id, username, pathway, course_id, level, percentage, status)
				values (?, ?, ?, ?, ?, ?, ?)`,
				runId, member.Username, p.Name, p.CourseId, p.CurrentLevel, p.CompletionPercentage, p.Status,
			)
			if err != nil {
				return "", err
			}
		}
	}

	return runId, tx.Commit()
}

type Snapshot struct {
	Time       time.Time
	Level      int
	Percentage float64
	Status     string
}

type PathwaySeries struct {
	Pathway   string
	Snapshots []Snapshot
}

// Pull returns the recorded progress of username, one series per pathway in name
// order, snapshots oldest first.
func (s Store) Pull(ctx context.Context, username string) ([]PathwaySeries, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select ps.pathway, r.time, ps.level, ps.percentage, ps.status
		from pathway_snapshot ps
		join run r on r.id = ps.run_id
		where ps.username = ?
		order by ps.pathway, r.time`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []PathwaySeries
	for rows.Next() {
		var pathway string
		var unix int64
		var snap Snapshot
		err := rows.Scan(&pathway, &unix, &snap.Level, &snap.Percentage, &snap.Status)
		if err != nil {
			return nil, err
		}
		snap.Time = time.Unix(unix, 0)

		if len(series) == 0 || series[len(series)-1].Pathway != pathway {
			series = append(series, PathwaySeries{Pathway: pathway})
		}
		last := &series[len(series)-1]
		last.Snapshots = append(last.Snapshots, snap)
	}
	return series, rows.Err()
}

// Runs lists the most recent runs, newest first.
func (s Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select id, time, club_id, club_name, member_count from run order by time desc limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var unix int64
		err := rows.Scan(&r.Id, &unix, &r.ClubId, &r.ClubName, &r.MemberCount)
		if err != nil {
			return nil, err
		}
		r.Time = time.Unix(unix, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
