package report

import (
	"fmt"

	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// Summary aggregates one session's closed positions.
type Summary struct {
	SessionDate  string             `json:"session_date"`
	Closed       int                `json:"closed"`
	Wins         int                `json:"wins"`
	Losses       int                `json:"losses"`
	WinRate      float64            `json:"win_rate"`
	AvgWin       float64            `json:"avg_win"`
	AvgLoss      float64            `json:"avg_loss"`
	TotalPnL     float64            `json:"total_pnl"`
	ExitsByCause map[string]int     `json:"exits_by_cause"`
	BySymbol     map[string]float64 `json:"by_symbol"`
}

// Build computes the summary for a set of closed positions. A break-even
// exit counts as a loss: it paid costs without paying for the risk.
func Build(sessionDate string, closed []model.Position) Summary {
	s := Summary{
		SessionDate:  sessionDate,
		Closed:       len(closed),
		ExitsByCause: make(map[string]int),
		BySymbol:     make(map[string]float64),
	}
	var winTotal, lossTotal float64
	for _, p := range closed {
		s.TotalPnL += p.RealizedPnL
		s.ExitsByCause[string(p.ExitReason)]++
		s.BySymbol[p.Symbol] += p.RealizedPnL
		if p.RealizedPnL > 0 {
			s.Wins++
			winTotal += p.RealizedPnL
		} else {
			s.Losses++
			lossTotal += p.RealizedPnL
		}
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed)
	}
	if s.Wins > 0 {
		s.AvgWin = winTotal / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = lossTotal / float64(s.Losses)
	}
	return s
}

// Details flattens the summary for the notifier.
func (s Summary) Details() map[string]string {
	d := map[string]string{
		"date":     s.SessionDate,
		"closed":   fmt.Sprintf("%d", s.Closed),
		"wins":     fmt.Sprintf("%d", s.Wins),
		"losses":   fmt.Sprintf("%d", s.Losses),
		"win_rate": fmt.Sprintf("%.0f%%", s.WinRate*100),
		"total":    fmt.Sprintf("%.2f", s.TotalPnL),
	}
	if s.Wins > 0 {
		d["avg_win"] = fmt.Sprintf("%.2f", s.AvgWin)
	}
	if s.Losses > 0 {
		d["avg_loss"] = fmt.Sprintf("%.2f", s.AvgLoss)
	}
	return d
}
