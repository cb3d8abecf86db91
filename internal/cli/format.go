package cli

import (
	"fmt"
	"time"
)

// FormatYuan formats an amount in CNY with two decimals.
func FormatYuan(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-¥%.2f", -amount)
	}
	return fmt.Sprintf("¥%.2f", amount)
}

// FormatPercent formats a percentage with an explicit sign.
func FormatPercent(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.2f%%", value)
	}
	return fmt.Sprintf("%.2f%%", value)
}

// FormatSignedAmount formats a price change with an explicit sign.
func FormatSignedAmount(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.2f", value)
	}
	return fmt.Sprintf("%.2f", value)
}

// FormatVolume renders share volume in the customary 万/亿 units.
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e8:
		return fmt.Sprintf("%.2f亿", v/1e8)
	case v >= 1e4:
		return fmt.Sprintf("%.2f万", v/1e4)
	default:
		return fmt.Sprintf("%d", volume)
	}
}

// FormatPnL formats profit and loss with an explicit sign.
func FormatPnL(pnl float64) string {
	if pnl > 0 {
		return "+" + FormatYuan(pnl)
	}
	return FormatYuan(pnl)
}

// FormatClock renders a timestamp as local wall-clock time.
func FormatClock(t time.Time) string {
	return t.Local().Format("15:04:05")
}
