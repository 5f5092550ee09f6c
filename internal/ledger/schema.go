package ledger

const schemaSQL = `
CREATE TABLE IF NOT EXISTS proposals (
  id TEXT PRIMARY KEY, ts_s INTEGER NOT NULL, symbol TEXT NOT NULL,
  strategy TEXT NOT NULL, side TEXT NOT NULL, quantity INTEGER NOT NULL,
  context_json TEXT NOT NULL, status TEXT NOT NULL,
  rejection_reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY, proposal_id TEXT NOT NULL, symbol TEXT NOT NULL,
  status TEXT NOT NULL, filled_price REAL, quantity INTEGER NOT NULL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS positions (
  symbol TEXT NOT NULL, quantity INTEGER NOT NULL, cost_basis REAL NOT NULL,
  date_acquired TEXT NOT NULL, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS system_status (
  id TEXT PRIMARY KEY DEFAULT 'singleton', status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '', updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS equity_snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT, equity REAL NOT NULL,
  taken_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS restricted_dates (
  date TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS position_metadata (
  order_id TEXT PRIMARY KEY, symbol TEXT NOT NULL, bias TEXT NOT NULL,
  strategy TEXT NOT NULL, correlation_group TEXT NOT NULL DEFAULT '',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS day_state (
  id TEXT PRIMARY KEY DEFAULT 'singleton', trading_date TEXT NOT NULL,
  start_of_day_equity REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS heartbeat_state (
  id TEXT PRIMARY KEY DEFAULT 'singleton', last_heartbeat_at DATETIME NOT NULL,
  brain_state TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_proposals_symbol ON proposals(symbol);
CREATE INDEX IF NOT EXISTS idx_orders_proposal_id ON orders(proposal_id);
CREATE INDEX IF NOT EXISTS idx_position_metadata_symbol ON position_metadata(symbol);
`

func (db *DB) initTables() error {
	_, err := db.conn.Exec(schemaSQL)
	return err
}
