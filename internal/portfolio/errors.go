package portfolio

import (
	"errors"
	"fmt"
)

// Two error families live here. Local errors (insufficient cash, no open
// position, data gap) are recovered at the per-symbol step and surface only
// as audit entries; fatal errors (ConfigError, InvariantError) escape to the
// caller and abort the run.

var (
	// ErrInsufficientCash rejects an entry whose notional plus costs
	// exceeds available cash. The trade is skipped, never truncated.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrNoOpenPosition rejects an exit for a symbol with no open position.
	ErrNoOpenPosition = errors.New("no open position")

	// ErrDataGap marks a symbol with no price on the current date.
	ErrDataGap = errors.New("missing price data")
)

// ConfigError reports an invalid portfolio configuration. It is fatal and
// raised before any simulation state is created.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("portfolio config: %s %s", e.Field, e.Reason)
}

// InvariantError indicates ledger state corruption (negative cash, duplicate
// open position). It signals a bug in the orchestration and always aborts
// the run.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "ledger invariant violated: " + e.Detail
}
