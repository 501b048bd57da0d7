package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/omicsbio/hgtscan/internal/score"
)

// ResultRow holds the data needed to write one scored query to DuckDB.
type ResultRow struct {
	Ingroup   string
	Candidate bool
	Result    *score.Result
}

// resultKey is the composite key for deduplicating rows before writing.
type resultKey struct {
	query, ingroup string
}

// WriteResults batch-inserts scan results using the Appender API.
// Duplicate (query, ingroup) entries are deduplicated before writing, rows
// from earlier runs are replaced rather than tripping the primary key, and
// undefined support is stored as NULL.
func (s *Store) WriteResults(rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[resultKey]bool, len(rows))
	deduped := make([]ResultRow, 0, len(rows))
	for _, r := range rows {
		k := resultKey{r.Result.QueryID, r.Ingroup}
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, r)
		}
	}

	if err := s.deleteExisting(deduped); err != nil {
		return err
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "hgt_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, row := range deduped {
		r := row.Result
		var support any
		if r.SupportDefined {
			support = r.Support
		}
		if err := appender.AppendRow(
			r.QueryID, row.Ingroup,
			r.HU, r.BitOut, r.BitIn, r.AI, r.EvalOut, r.EvalIn,
			r.WinningCategory.String(), support, r.Lineage,
			row.Candidate,
		); err != nil {
			return fmt.Errorf("append result row: %w", err)
		}
	}

	return appender.Flush()
}

// deleteExisting removes rows from earlier runs that share a primary key
// with the rows about to be appended.
func (s *Store) deleteExisting(rows []ResultRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM hgt_results WHERE query = ? AND ingroup = ?")
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.Result.QueryID, r.Ingroup); err != nil {
			return fmt.Errorf("delete existing result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

// ClearResults removes all stored results.
func (s *Store) ClearResults() error {
	_, err := s.db.Exec("DELETE FROM hgt_results")
	return err
}

// ResultCount returns the number of stored result rows.
func (s *Store) ResultCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM hgt_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// StoredResult is one persisted row read back from DuckDB.
type StoredResult struct {
	Query           string
	Ingroup         string
	HU              float64
	BitOut          float64
	BitIn           float64
	AI              float64
	EvalOut         float64
	EvalIn          float64
	WinningCategory string
	Support         sql.NullFloat64
	Lineage         string
	Candidate       bool
}

// Candidates returns all rows flagged as HGT candidates, ordered by
// descending hU.
func (s *Store) Candidates() ([]StoredResult, error) {
	rows, err := s.db.Query(`SELECT
		query, ingroup, hu, bit_out, bit_in, ai, eval_out, eval_in,
		winning_category, support, lineage, is_candidate
		FROM hgt_results
		WHERE is_candidate
		ORDER BY hu DESC, query`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		if err := rows.Scan(
			&r.Query, &r.Ingroup, &r.HU, &r.BitOut, &r.BitIn, &r.AI,
			&r.EvalOut, &r.EvalIn, &r.WinningCategory, &r.Support,
			&r.Lineage, &r.Candidate,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return results, nil
}
