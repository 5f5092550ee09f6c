// Package ledger is the Gate's durable store: proposals, orders,
// positions, system status, equity history, restricted dates, and
// position metadata, all backed by sqlite. Grounded on the teacher's
// store.TacticStore (sql.DB wrapper, initTables with CREATE TABLE IF
// NOT EXISTS + indexes, one method per query) using the pure-Go
// modernc.org/sqlite driver in place of the teacher's own backend.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zerotype19/gekko3/internal/model"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// ProposalRecord is one row of the proposals ledger, written for every
// evaluation (approved or rejected) before the HTTP response returns.
type ProposalRecord struct {
	ID               string
	TimestampS       int64
	Symbol           model.Symbol
	Strategy         model.Strategy
	Side             model.ProposalSide
	Quantity         int
	ContextJSON      string
	Status           string
	RejectionReason  string
}

func (db *DB) InsertProposal(r ProposalRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO proposals (id, ts_s, symbol, strategy, side, quantity, context_json, status, rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TimestampS, string(r.Symbol), string(r.Strategy), string(r.Side), r.Quantity, r.ContextJSON, r.Status, r.RejectionReason)
	return err
}

func (db *DB) RecentProposals(limit int) ([]ProposalRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, ts_s, symbol, strategy, side, quantity, context_json, status, rejection_reason
		FROM proposals ORDER BY ts_s DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProposalRecord
	for rows.Next() {
		var r ProposalRecord
		var symbol, strategy, side string
		if err := rows.Scan(&r.ID, &r.TimestampS, &symbol, &strategy, &side, &r.Quantity, &r.ContextJSON, &r.Status, &r.RejectionReason); err != nil {
			return nil, err
		}
		r.Symbol, r.Strategy, r.Side = model.Symbol(symbol), model.Strategy(strategy), model.ProposalSide(side)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProposalSummary groups approved/rejected counts by symbol and status
// for the end-of-day report.
type ProposalSummary struct {
	Symbol model.Symbol
	Status string
	Count  int
}

func (db *DB) SummarizeProposalsSince(tsS int64) ([]ProposalSummary, error) {
	rows, err := db.conn.Query(`
		SELECT symbol, status, COUNT(*) FROM proposals
		WHERE ts_s >= ? GROUP BY symbol, status`, tsS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProposalSummary
	for rows.Next() {
		var s ProposalSummary
		var symbol string
		if err := rows.Scan(&symbol, &s.Status, &s.Count); err != nil {
			return nil, err
		}
		s.Symbol = model.Symbol(symbol)
		out = append(out, s)
	}
	return out, rows.Err()
}

type OrderRecord struct {
	ID          string
	ProposalID  string
	Symbol      model.Symbol
	Status      string
	FilledPrice sql.NullFloat64
	Quantity    int
}

func (db *DB) InsertOrder(r OrderRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO orders (id, proposal_id, symbol, status, filled_price, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProposalID, string(r.Symbol), r.Status, r.FilledPrice, r.Quantity)
	return err
}

func (db *DB) UpdateOrderStatus(orderID, status string, filledPrice *float64) error {
	_, err := db.conn.Exec(`
		UPDATE orders SET status = ?, filled_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, filledPrice, orderID)
	return err
}

// PendingOrders lists every order still in "pending" status, used by
// the liquidate admin operation to know what to cancel.
func (db *DB) PendingOrders() ([]OrderRecord, error) {
	rows, err := db.conn.Query(`SELECT id, proposal_id, symbol, status, filled_price, quantity FROM orders WHERE status = 'pending'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var symbol string
		if err := rows.Scan(&r.ID, &r.ProposalID, &symbol, &r.Status, &r.FilledPrice, &r.Quantity); err != nil {
			return nil, err
		}
		r.Symbol = model.Symbol(symbol)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplacePositions truncates and rewrites the positions snapshot, since
// spec §6 defines it as "truncated and rewritten on every reconciliation".
func (db *DB) ReplacePositions(snapshot map[model.Symbol]int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		tx.Rollback()
		return err
	}
	today := time.Now().UTC().Format("2006-01-02")
	for symbol, qty := range snapshot {
		if _, err := tx.Exec(`
			INSERT INTO positions (symbol, quantity, cost_basis, date_acquired) VALUES (?, ?, 0, ?)`,
			string(symbol), qty, today); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) GetSystemStatus() (model.LockState, error) {
	var status, reason string
	err := db.conn.QueryRow(`SELECT status, reason FROM system_status WHERE id = 'singleton'`).Scan(&status, &reason)
	if err == sql.ErrNoRows {
		return model.LockState{Status: model.StatusNormal}, nil
	}
	if err != nil {
		return model.LockState{}, err
	}
	return model.LockState{Status: model.LockStatus(status), Reason: reason}, nil
}

func (db *DB) SetSystemStatus(s model.LockState) error {
	_, err := db.conn.Exec(`
		INSERT INTO system_status (id, status, reason, updated_at) VALUES ('singleton', ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, reason = excluded.reason, updated_at = CURRENT_TIMESTAMP`,
		string(s.Status), s.Reason)
	return err
}

func (db *DB) RecordEquitySnapshot(equity float64) error {
	_, err := db.conn.Exec(`INSERT INTO equity_snapshots (equity) VALUES (?)`, equity)
	return err
}

func (db *DB) LatestEquitySnapshot() (float64, bool, error) {
	var equity float64
	err := db.conn.QueryRow(`SELECT equity FROM equity_snapshots ORDER BY id DESC LIMIT 1`).Scan(&equity)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return equity, true, nil
}

func (db *DB) ReplaceRestrictedDates(dates []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM restricted_dates`); err != nil {
		tx.Rollback()
		return err
	}
	for _, d := range dates {
		if _, err := tx.Exec(`INSERT INTO restricted_dates (date) VALUES (?)`, d); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) RestrictedDates() (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT date FROM restricted_dates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[d] = true
	}
	return out, rows.Err()
}

func (db *DB) PutPositionMetadata(m model.PositionMetadata) error {
	_, err := db.conn.Exec(`
		INSERT INTO position_metadata (order_id, symbol, bias, strategy, correlation_group, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET symbol=excluded.symbol, bias=excluded.bias,
			strategy=excluded.strategy, correlation_group=excluded.correlation_group`,
		m.OrderID, string(m.Symbol), string(m.Bias), string(m.Strategy), m.CorrelationGroup, m.CreatedAt)
	return err
}

func (db *DB) DeletePositionMetadata(orderID string) error {
	_, err := db.conn.Exec(`DELETE FROM position_metadata WHERE order_id = ?`, orderID)
	return err
}

// FindMostRecentOpenMetadata locates the most recent open order's
// Position Metadata for (symbol, strategy), used when a CLOSE proposal
// needs to know which OPEN order's metadata to remove.
func (db *DB) FindMostRecentOpenMetadata(symbol model.Symbol, strategyName model.Strategy) (model.PositionMetadata, bool, error) {
	var m model.PositionMetadata
	var symbolStr, bias, strategy string
	err := db.conn.QueryRow(`
		SELECT order_id, symbol, bias, strategy, correlation_group, created_at
		FROM position_metadata WHERE symbol = ? AND strategy = ? ORDER BY created_at DESC LIMIT 1`,
		string(symbol), string(strategyName)).Scan(&m.OrderID, &symbolStr, &bias, &strategy, &m.CorrelationGroup, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return model.PositionMetadata{}, false, nil
	}
	if err != nil {
		return model.PositionMetadata{}, false, err
	}
	m.Symbol, m.Bias, m.Strategy = model.Symbol(symbolStr), model.Bias(bias), model.Strategy(strategy)
	return m, true, nil
}

func (db *DB) AllPositionMetadata() ([]model.PositionMetadata, error) {
	rows, err := db.conn.Query(`SELECT order_id, symbol, bias, strategy, correlation_group, created_at FROM position_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PositionMetadata
	for rows.Next() {
		var m model.PositionMetadata
		var symbol, bias, strategy string
		if err := rows.Scan(&m.OrderID, &symbol, &bias, &strategy, &m.CorrelationGroup, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Symbol, m.Bias, m.Strategy = model.Symbol(symbol), model.Bias(bias), model.Strategy(strategy)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DayState is the Gate's durable start-of-day-equity marker, keyed by
// calendar date so a process restart mid-day does not re-baseline the
// daily-loss check (spec §4.H step 11).
type DayState struct {
	TradingDate      string
	StartOfDayEquity float64
}

func (db *DB) GetDayState() (DayState, bool, error) {
	var s DayState
	err := db.conn.QueryRow(`SELECT trading_date, start_of_day_equity FROM day_state WHERE id = 'singleton'`).Scan(&s.TradingDate, &s.StartOfDayEquity)
	if err == sql.ErrNoRows {
		return DayState{}, false, nil
	}
	if err != nil {
		return DayState{}, false, err
	}
	return s, true, nil
}

func (db *DB) SetDayState(s DayState) error {
	_, err := db.conn.Exec(`
		INSERT INTO day_state (id, trading_date, start_of_day_equity) VALUES ('singleton', ?, ?)
		ON CONFLICT(id) DO UPDATE SET trading_date = excluded.trading_date, start_of_day_equity = excluded.start_of_day_equity`,
		s.TradingDate, s.StartOfDayEquity)
	return err
}

// GetHeartbeat and SetHeartbeat persist the Gate's durable record of
// the Brain's liveness signal (spec §3 Heartbeat State).
func (db *DB) GetHeartbeat() (model.HeartbeatState, bool, error) {
	var h model.HeartbeatState
	var ts time.Time
	var stateJSON string
	err := db.conn.QueryRow(`SELECT last_heartbeat_at, brain_state FROM heartbeat_state WHERE id = 'singleton'`).Scan(&ts, &stateJSON)
	if err == sql.ErrNoRows {
		return model.HeartbeatState{}, false, nil
	}
	if err != nil {
		return model.HeartbeatState{}, false, err
	}
	h.LastHeartbeatAt = ts
	if stateJSON != "" {
		h.BrainState = json.RawMessage(stateJSON)
	}
	return h, true, nil
}

func (db *DB) SetHeartbeat(h model.HeartbeatState) error {
	stateJSON := "{}"
	if len(h.BrainState) > 0 {
		stateJSON = string(h.BrainState)
	}
	_, err := db.conn.Exec(`
		INSERT INTO heartbeat_state (id, last_heartbeat_at, brain_state) VALUES ('singleton', ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_heartbeat_at = excluded.last_heartbeat_at, brain_state = excluded.brain_state`,
		h.LastHeartbeatAt, stateJSON)
	return err
}

// EncodeContext renders a proposal's context dictionary into the JSON
// text the proposals table's context_json column stores.
func EncodeContext(ctx model.Context) (string, error) {
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
