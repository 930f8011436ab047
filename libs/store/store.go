// Package store implements the persistent SQL-backed layer: the ticker
// catalogue, one physical candle table per catalogue row, and the
// notification catalogue.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"

	"athena/libs/database"
	"athena/libs/ticker"
)

// TickerRecord is a catalogue entry pointing at a physical candle table.
type TickerRecord struct {
	ID        int64
	Naming    ticker.Naming
	TableName string
}

// Notification is a persisted rule plus its owning chat.
type Notification struct {
	ID                int64
	ChatID            int64
	CompiledCondition string
	OriginCondition   string
}

// Store wraps the embedded database with the catalogue, candle, and
// notification operations. EnsureTicker, UpsertCandles, ReadCandles and
// AddNotification each run inside a short-lived transaction;
// GetNotifications and RemoveNotification are single statements run
// without an explicit one.
type Store struct {
	db *database.DB
}

// New wraps an already-connected, already-migrated database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// symbolPattern bounds what the lexer ever hands us for a ticker
// symbol (letters/digits); table names are built by string
// interpolation so this is checked again here, independent of the
// lexer, before it is ever used in SQL.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func validateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: invalid ticker symbol %q", ticker.ErrWrongCondition, symbol)
	}
	return nil
}

// EnsureTicker returns the catalogue row for naming, creating the
// catalogue entry and its (empty) physical table on first use.
func (s *Store) EnsureTicker(ctx context.Context, naming ticker.Naming) (TickerRecord, error) {
	if err := validateSymbol(naming.Symbol); err != nil {
		return TickerRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TickerRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM ticker WHERE name = ? AND aggregator = ? AND timespan = ?`,
		naming.Symbol, naming.Aggregator.String(), naming.TimeSpan.String(),
	).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO ticker (name, aggregator, timespan) VALUES (?, ?, ?)`,
			naming.Symbol, naming.Aggregator.String(), naming.TimeSpan.String(),
		)
		if err != nil {
			return TickerRecord{}, fmt.Errorf("insert ticker catalogue row: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return TickerRecord{}, fmt.Errorf("read inserted ticker id: %w", err)
		}
	case err != nil:
		return TickerRecord{}, fmt.Errorf("lookup ticker catalogue row: %w", err)
	}

	record := TickerRecord{ID: id, Naming: naming, TableName: naming.TableName()}
	if err := createCandleTable(ctx, tx, naming); err != nil {
		return TickerRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return TickerRecord{}, fmt.Errorf("commit tx: %w", err)
	}
	return record, nil
}

func createCandleTable(ctx context.Context, tx *sql.Tx, naming ticker.Naming) error {
	cols := ticker.ColumnsForAggregator(naming.Aggregator)
	colDefs := ""
	for _, c := range cols {
		colDefs += fmt.Sprintf(", %s REAL", c.StorageName())
	}
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s INTEGER PRIMARY KEY%s)`,
		naming.TableName(), ticker.DatetimeColumn, colDefs,
	)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create candle table %s: %w", naming.TableName(), err)
	}
	return nil
}

// UpsertCandles inserts rows into naming's physical table, creating the
// catalogue row and table on first call. On timestamp collision the
// later-written row wins.
func (s *Store) UpsertCandles(ctx context.Context, naming ticker.Naming, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.EnsureTicker(ctx, naming); err != nil {
		return err
	}

	cols := ticker.ColumnsForAggregator(naming.Aggregator)
	colNames := make([]string, 0, len(cols)+1)
	colNames = append(colNames, ticker.DatetimeColumn)
	placeholders := "?"
	updates := ""
	for _, c := range cols {
		colNames = append(colNames, c.StorageName())
		placeholders += ", ?"
		updates += fmt.Sprintf(", %s = excluded.%s", c.StorageName(), c.StorageName())
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s`,
		naming.TableName(), joinColumns(colNames), placeholders, ticker.DatetimeColumn, updates[2:],
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, 0, len(cols)+1)
		args = append(args, row.Datetime)
		for _, c := range cols {
			args = append(args, row.Values[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert row at %d: %w", row.Datetime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReadCandles returns the rows for naming in [start, end], sorted
// ascending, or (nil, false) if the catalogue entry does not exist.
func (s *Store) ReadCandles(ctx context.Context, naming ticker.Naming, start, end int64) (Table, bool, error) {
	if err := validateSymbol(naming.Symbol); err != nil {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM ticker WHERE name = ? AND aggregator = ? AND timespan = ?`,
		naming.Symbol, naming.Aggregator.String(), naming.TimeSpan.String(),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup ticker catalogue row: %w", err)
	}

	cols := ticker.ColumnsForAggregator(naming.Aggregator)
	colNames := []string{ticker.DatetimeColumn}
	for _, c := range cols {
		colNames = append(colNames, c.StorageName())
	}
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s BETWEEN ? AND ? ORDER BY %s ASC`,
		joinColumns(colNames), naming.TableName(), ticker.DatetimeColumn, ticker.DatetimeColumn,
	)

	rowsResult, err := tx.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, false, fmt.Errorf("read candles: %w", err)
	}
	defer rowsResult.Close()

	var table Table
	for rowsResult.Next() {
		scanDest := make([]any, len(colNames))
		var datetime int64
		scanDest[0] = &datetime
		values := make([]sql.NullFloat64, len(cols))
		for i := range cols {
			scanDest[i+1] = &values[i]
		}
		if err := rowsResult.Scan(scanDest...); err != nil {
			return nil, false, fmt.Errorf("scan candle row: %w", err)
		}
		row := Row{Datetime: datetime, Values: make(map[ticker.Column]float64, len(cols))}
		for i, c := range cols {
			if values[i].Valid {
				row.Values[c] = values[i].Float64
			}
		}
		table = append(table, row)
	}
	if err := rowsResult.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate candle rows: %w", err)
	}

	sort.Slice(table, func(i, j int) bool { return table[i].Datetime < table[j].Datetime })
	return table, true, nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
