package builtins

import "scizor/internal/strategy"

// Register adds every built-in strategy factory to the registry.
func Register(r *strategy.Registry) {
	r.Register("sma-cross", SMACrossFactory)
	r.Register("rsi-reversion", RSIReversionFactory)
	r.Register("buy-hold", BuyAndHoldFactory)
}
