// Package notify delivers trading signal alerts to outside channels.
package notify

import (
	"context"
	"fmt"
	"strings"

	"market-analyzer/internal/trading"
)

// Notifier sends signal alerts. Delivery failures are reported, never fatal
// to the run that produced the signals.
type Notifier interface {
	Name() string
	SendSignals(ctx context.Context, portfolio string, signals []trading.TradeSignal) error
}

// FormatSignals renders pending signals as a plain-text alert.
func FormatSignals(portfolio string, signals []trading.TradeSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signals for %s\n", portfolio)
	if len(signals) == 0 {
		b.WriteString("No pending signals")
		return b.String()
	}
	for _, sig := range signals {
		fmt.Fprintf(&b, "%s %s @ %.2f (score %.2f, %s)", sig.Action, sig.Symbol, sig.Price, sig.Score, sig.Reason)
		if sig.Shares > 0 {
			fmt.Fprintf(&b, " %d shares, %+.2f%%", sig.Shares, sig.PnLPct)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
