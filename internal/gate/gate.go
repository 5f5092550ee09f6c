// Package gate is the Gatekeeper's risk-gate actor (spec §4.H): a
// stateful, single-writer validator and execution router. Grounded on
// other_examples/07ff2077_web3guy0-polybot__risk-gate.go.go's RiskGate
// (a sync.RWMutex-guarded struct with a daily-loss circuit breaker and
// a reject-with-reason closure), generalized from its single
// CanEnter/CanExit pair into the full fifteen-step evaluation order
// spec §4.H names, and from in-memory-only state into state durable
// across restarts via internal/ledger.
package gate

import (
	"sync"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/model"
	"github.com/zerotype19/gekko3/internal/notifier"
)

var log = logging.For("gate.actor")

// Gate is the single logical actor spec §5 requires: every mutating
// operation (Evaluate, Heartbeat, Lock, Unlock, Liquidate,
// UpdateCalendar) and every read (Status) acquires mu and runs to
// completion before releasing it. Never construct a second Gate over
// the same ledger/broker pair in one process.
type Gate struct {
	mu sync.Mutex

	constitution model.Constitution
	sharedSecret string
	ledger       *ledger.DB
	broker       broker.Client
	notifier     notifier.Notifier

	lock            model.LockState
	restrictedDates map[string]bool
	day             ledger.DayState
	heartbeat       model.HeartbeatState

	// cachedPositions/cachedEquity hold the last successful broker
	// reconciliation so a transient broker outage (spec §7 kind 3) lets
	// evaluation continue on stale-but-known state instead of blocking.
	cachedPositions map[model.Symbol][]broker.BrokerLegPosition
	cachedEquity    float64
}

// New constructs a Gate, loading Lock State, Restricted Dates, and the
// start-of-day equity marker from the ledger (spec §3's durable-state
// list for the Gate).
func New(constitution model.Constitution, sharedSecret string, db *ledger.DB, brokerClient broker.Client, notify notifier.Notifier) (*Gate, error) {
	lock, err := db.GetSystemStatus()
	if err != nil {
		return nil, err
	}
	dates, err := db.RestrictedDates()
	if err != nil {
		return nil, err
	}
	day, _, err := db.GetDayState()
	if err != nil {
		return nil, err
	}
	hb, _, err := db.GetHeartbeat()
	if err != nil {
		return nil, err
	}

	return &Gate{
		constitution:    constitution,
		sharedSecret:    sharedSecret,
		ledger:          db,
		broker:          brokerClient,
		notifier:        notify,
		lock:            lock,
		restrictedDates: dates,
		day:             day,
		heartbeat:       hb,
		cachedPositions: make(map[model.Symbol][]broker.BrokerLegPosition),
	}, nil
}

// Decision is the outcome of one proposal evaluation, shaped to map
// directly onto the §6 HTTP response.
type Decision struct {
	Status     string // APPROVED | REJECTED | APPROVED_BUT_EXECUTION_FAILED
	Reason     string
	Error      string
	OrderID    string
	ProposalID string
}

const (
	StatusApproved                  = "APPROVED"
	StatusRejected                  = "REJECTED"
	StatusApprovedExecutionFailed   = "APPROVED_BUT_EXECUTION_FAILED"
)

func tradingDate(now time.Time) string {
	loc := nyLocation()
	return now.In(loc).Format("2006-01-02")
}

func nyLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}
