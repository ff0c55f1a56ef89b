package subledger

import "fmt"

// InsufficientInventoryError reports a SELL that exceeds the open quantity
// available in its partition. Matching stops for that partition only; other
// partitions are unaffected.
type InsufficientInventoryError struct {
	Key     PositionKey
	TradeID string
	Short   Quantity // unmatched part of the sell quantity
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory in %s: sell %s exceeds open quantity by %s",
		e.Key, e.TradeID, e.Short)
}

// ConfigurationError reports a defect in the run configuration, such as an
// incomplete chart of accounts. It is fatal for the run: it indicates a setup
// problem, not a data problem.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// InvariantViolationError reports a numeric invariant broken inside the
// engine itself, such as a posting set that does not balance. The offending
// unit of work is aborted rather than emitted with bad data.
type InvariantViolationError struct {
	Context string
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Context, e.Detail)
}
