// Package sqlite persists the library model in a sqlite database. The Show
// aggregate is written transactionally: the show row is upserted and its
// children replaced, so a save is idempotent.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/storage"
)

const (
	ownerShow    = "show"
	ownerSeason  = "season"
	ownerEpisode = "episode"
)

type SQLite struct {
	db *sql.DB
}

// New opens or creates the sqlite database at filePath and brings its schema
// up to date.
func New(filePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+filePath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetShowByPath(ctx context.Context, path string) (*storage.Show, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, datasource, title, year, ids, locked FROM shows WHERE path = ?`, path)

	show, err := scanShow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadChildren(ctx, show); err != nil {
		return nil, err
	}

	return show, nil
}

func (s *SQLite) ListShows(ctx context.Context, datasource string) ([]*storage.Show, error) {
	log := logger.FromCtx(ctx)

	query := `SELECT id, path, datasource, title, year, ids, locked FROM shows ORDER BY path`
	args := []any{}
	if datasource != "" {
		query = `SELECT id, path, datasource, title, year, ids, locked FROM shows WHERE datasource = ? ORDER BY path`
		args = append(args, datasource)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Errorw("failed to list shows", "err", err)
		return nil, err
	}
	defer rows.Close()

	var shows []*storage.Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, show := range shows {
		if err := s.loadChildren(ctx, show); err != nil {
			return nil, err
		}
	}

	return shows, nil
}

func (s *SQLite) SaveShow(ctx context.Context, show *storage.Show) (int64, error) {
	ids, err := json.Marshal(show.IDs)
	if err != nil {
		return 0, fmt.Errorf("encoding external ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if show.ID == 0 {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO shows (path, datasource, title, year, ids, locked) VALUES (?, ?, ?, ?, ?, ?)`,
			show.Path, show.Datasource, show.Title, show.Year, string(ids), show.Locked)
		if err != nil {
			return 0, err
		}
		show.ID, err = result.LastInsertId()
		if err != nil {
			return 0, err
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`UPDATE shows SET path = ?, datasource = ?, title = ?, year = ?, ids = ?, locked = ? WHERE id = ?`,
			show.Path, show.Datasource, show.Title, show.Year, string(ids), show.Locked, show.ID)
		if err != nil {
			return 0, err
		}
	}

	// children are replaced wholesale
	for _, stmt := range []string{
		`DELETE FROM media_files WHERE show_id = ?`,
		`DELETE FROM episodes WHERE show_id = ?`,
		`DELETE FROM seasons WHERE show_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, show.ID); err != nil {
			return 0, err
		}
	}

	for _, f := range show.MediaFiles {
		if err := insertFile(ctx, tx, show.ID, ownerShow, nil, nil, f); err != nil {
			return 0, err
		}
	}

	for _, season := range show.Seasons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seasons (show_id, number, title) VALUES (?, ?, ?)`,
			show.ID, season.Number, season.Title); err != nil {
			return 0, err
		}
		for _, f := range season.MediaFiles {
			number := season.Number
			if err := insertFile(ctx, tx, show.ID, ownerSeason, &number, nil, f); err != nil {
				return 0, err
			}
		}
	}

	for _, e := range show.Episodes {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO episodes (show_id, season, episode, title, air_date, multi_episode, stacked) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			show.ID, e.Season, e.Episode, e.Title, e.AirDate, e.MultiEpisode, e.Stacked)
		if err != nil {
			return 0, err
		}
		e.ID, err = result.LastInsertId()
		if err != nil {
			return 0, err
		}
		for _, f := range e.MediaFiles {
			if err := insertFile(ctx, tx, show.ID, ownerEpisode, nil, &e.ID, f); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return show.ID, nil
}

func (s *SQLite) DeleteShow(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func insertFile(ctx context.Context, tx *sql.Tx, showID int64, owner string, seasonNumber *int, episodeID *int64, f storage.MediaFile) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO media_files (show_id, owner, season_number, episode_id, path, type, size, mod_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		showID, owner, seasonNumber, episodeID, f.Path, string(f.Type), f.Size, f.ModTime)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*storage.Show, error) {
	var show storage.Show
	var ids string

	err := row.Scan(&show.ID, &show.Path, &show.Datasource, &show.Title, &show.Year, &ids, &show.Locked)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(ids), &show.IDs); err != nil {
		return nil, fmt.Errorf("decoding external ids: %w", err)
	}

	return &show, nil
}

func (s *SQLite) loadChildren(ctx context.Context, show *storage.Show) error {
	if err := s.loadSeasons(ctx, show); err != nil {
		return err
	}
	if err := s.loadEpisodes(ctx, show); err != nil {
		return err
	}
	return s.loadFiles(ctx, show)
}

func (s *SQLite) loadSeasons(ctx context.Context, show *storage.Show) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, title FROM seasons WHERE show_id = ? ORDER BY number`, show.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var season storage.Season
		if err := rows.Scan(&season.Number, &season.Title); err != nil {
			return err
		}
		show.Seasons = append(show.Seasons, &season)
	}

	return rows.Err()
}

func (s *SQLite) loadEpisodes(ctx context.Context, show *storage.Show) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, season, episode, title, air_date, multi_episode, stacked FROM episodes WHERE show_id = ? ORDER BY season, episode, id`, show.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e storage.Episode
		var aired sql.NullTime
		if err := rows.Scan(&e.ID, &e.Season, &e.Episode, &e.Title, &aired, &e.MultiEpisode, &e.Stacked); err != nil {
			return err
		}
		if aired.Valid {
			t := aired.Time
			e.AirDate = &t
		}
		show.Episodes = append(show.Episodes, &e)
	}

	return rows.Err()
}

func (s *SQLite) loadFiles(ctx context.Context, show *storage.Show) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner, season_number, episode_id, path, type, size, mod_time FROM media_files WHERE show_id = ? ORDER BY path`, show.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	episodesByID := make(map[int64]*storage.Episode, len(show.Episodes))
	for _, e := range show.Episodes {
		episodesByID[e.ID] = e
	}

	for rows.Next() {
		var owner string
		var seasonNumber sql.NullInt64
		var episodeID sql.NullInt64
		var fileType string
		var modTime sql.NullTime
		var f storage.MediaFile

		if err := rows.Scan(&owner, &seasonNumber, &episodeID, &f.Path, &fileType, &f.Size, &modTime); err != nil {
			return err
		}
		f.Type = classify.FileType(fileType)
		if modTime.Valid {
			f.ModTime = modTime.Time
		}

		switch owner {
		case ownerSeason:
			if seasonNumber.Valid {
				season := show.SeasonFor(int(seasonNumber.Int64))
				season.MediaFiles = append(season.MediaFiles, f)
			}
		case ownerEpisode:
			if e, ok := episodesByID[episodeID.Int64]; episodeID.Valid && ok {
				e.MediaFiles = append(e.MediaFiles, f)
			}
		default:
			show.MediaFiles = append(show.MediaFiles, f)
		}
	}

	return rows.Err()
}
