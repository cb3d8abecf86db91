package utils

import (
	"time"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// ShanghaiLocation is the timezone for the mainland exchanges.
var ShanghaiLocation *time.Location

func init() {
	var err error
	ShanghaiLocation, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		ShanghaiLocation = time.FixedZone("CST", 8*60*60)
	}
}

// SessionAt returns the A-share session in effect at the given instant.
func SessionAt(t time.Time) models.MarketSession {
	local := t.In(ShanghaiLocation)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return models.SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()

	switch {
	// Call auction: 9:15 - 9:30
	case minutes >= 555 && minutes < 570:
		return models.SessionCallAuction
	// Morning session: 9:30 - 11:30
	case minutes >= 570 && minutes < 690:
		return models.SessionMorning
	// Lunch break: 11:30 - 13:00
	case minutes >= 690 && minutes < 780:
		return models.SessionLunchBreak
	// Afternoon session: 13:00 - 15:00
	case minutes >= 780 && minutes < 900:
		return models.SessionAfternoon
	default:
		return models.SessionClosed
	}
}

// CurrentSession returns the session in effect right now.
func CurrentSession() models.MarketSession {
	return SessionAt(time.Now())
}

// IsTradingNow reports whether continuous trading is running right now.
func IsTradingNow() bool {
	return CurrentSession().Trading()
}

// NextOpenAfter returns the next continuous-trading open at or after t.
func NextOpenAfter(t time.Time) time.Time {
	local := t.In(ShanghaiLocation)

	morning := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, ShanghaiLocation)
	afternoon := time.Date(local.Year(), local.Month(), local.Day(), 13, 0, 0, 0, ShanghaiLocation)

	var next time.Time
	switch {
	case local.Before(morning):
		next = morning
	case local.Before(afternoon):
		next = afternoon
	default:
		next = morning.AddDate(0, 0, 1)
	}

	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SessionLabel renders a session phase in the terminal's display language.
func SessionLabel(s models.MarketSession) string {
	switch s {
	case models.SessionCallAuction:
		return "集合竞价"
	case models.SessionMorning, models.SessionAfternoon:
		return "交易中"
	case models.SessionLunchBreak:
		return "午间休市"
	default:
		return "已收盘"
	}
}
