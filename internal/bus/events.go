package bus

import "github.com/frankgibbs/algolearn-orb/internal/store/model"

// OpenPositionIntent is the payload of EvtOpenPositionIntent. All numeric
// fields must be strictly positive and the direction must be LONG or SHORT;
// the execution gateway rejects anything else as a hard error.
type OpenPositionIntent struct {
	Strategy       string          `json:"strategy"`
	Symbol         string          `json:"symbol"`
	Direction      model.Direction `json:"direction"`
	Shares         int             `json:"shares"`
	EntryPrice     float64         `json:"entry_price"`
	StopLoss       float64         `json:"stop_loss"`
	TakeProfit     float64         `json:"take_profit"`
	RangeSize      float64         `json:"range_size"`
	OpeningRangeID int64           `json:"opening_range_id"`
	SessionDate    string          `json:"session_date"`
	Reason         string          `json:"reason"`
}
