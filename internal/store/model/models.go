package model

import (
	"time"

	"gorm.io/datatypes"
)

// Direction of a position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Sign returns +1 for LONG and -1 for SHORT, for P&L math.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// PositionStatus only ever moves forward: PENDING -> OPEN -> CLOSED.
type PositionStatus string

const (
	StatusPending PositionStatus = "PENDING"
	StatusOpen    PositionStatus = "OPEN"
	StatusClosed  PositionStatus = "CLOSED"
)

// rank orders statuses for the forward-only transition guard.
func (s PositionStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusOpen:
		return 1
	case StatusClosed:
		return 2
	default:
		return -1
	}
}

// ExitReason is a closed enumeration; any other termination path is a defect.
type ExitReason string

const (
	ExitStopHit      ExitReason = "STOP_HIT"
	ExitTimeStagnant ExitReason = "TIME_EXIT_STAGNANT"
	ExitEndOfDay     ExitReason = "EOD_EXIT"
)

// OpeningRange is the per-symbol reference band for one session. Rows are
// append-only and only valid ranges are ever persisted.
type OpeningRange struct {
	ID               int64          `gorm:"column:id;primaryKey" json:"id"`
	Symbol           string         `gorm:"column:symbol;uniqueIndex:idx_range_symbol_date,priority:1" json:"symbol"`
	SessionDate      string         `gorm:"column:session_date;uniqueIndex:idx_range_symbol_date,priority:2" json:"session_date"` // YYYY-MM-DD
	TimeframeMinutes int            `gorm:"column:timeframe_minutes" json:"timeframe_minutes"`
	RangeHigh        float64        `gorm:"column:range_high" json:"range_high"`
	RangeLow         float64        `gorm:"column:range_low" json:"range_low"`
	RangeMid         float64        `gorm:"column:range_mid" json:"range_mid"`
	RangeSize        float64        `gorm:"column:range_size" json:"range_size"`
	RangeSizePct     float64        `gorm:"column:range_size_pct" json:"range_size_pct"`
	SourceBar        datatypes.JSON `gorm:"column:source_bar;type:TEXT" json:"source_bar"`
	CreatedAt        time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (OpeningRange) TableName() string { return "opening_ranges" }

// Position tracks one bracket trade. The primary key IS the broker entry
// order id; there is no surrogate key.
type Position struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	StopOrderID    int64          `gorm:"column:stop_order_id" json:"stop_order_id"`
	OpeningRangeID int64          `gorm:"column:opening_range_id" json:"opening_range_id"`
	Symbol         string         `gorm:"column:symbol;index" json:"symbol"`
	SessionDate    string         `gorm:"column:session_date;index" json:"session_date"`
	Direction      Direction      `gorm:"column:direction" json:"direction"`
	Shares         int            `gorm:"column:shares" json:"shares"`
	EntryTime      *time.Time     `gorm:"column:entry_time" json:"entry_time,omitempty"`
	EntryPrice     float64        `gorm:"column:entry_price" json:"entry_price"`
	StopLossPrice  float64        `gorm:"column:stop_loss_price" json:"stop_loss_price"`     // original protective level, immutable
	TakeProfit     float64        `gorm:"column:take_profit_price" json:"take_profit_price"` // monitored level, never a broker order
	StopMoved      bool           `gorm:"column:stop_moved" json:"stop_moved"`
	TrailingStop   float64        `gorm:"column:trailing_stop_price" json:"trailing_stop_price"`
	RangeSize      float64        `gorm:"column:range_size" json:"range_size"`
	CurrentPrice   float64        `gorm:"column:current_price" json:"current_price"`
	UnrealizedPnL  float64        `gorm:"column:unrealized_pnl" json:"unrealized_pnl"`
	Status         PositionStatus `gorm:"column:status;index" json:"status"`
	ExitTime       *time.Time     `gorm:"column:exit_time" json:"exit_time,omitempty"`
	ExitPrice      float64        `gorm:"column:exit_price" json:"exit_price"`
	ExitReason     ExitReason     `gorm:"column:exit_reason" json:"exit_reason,omitempty"`
	RealizedPnL    float64        `gorm:"column:realized_pnl" json:"realized_pnl"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Position) TableName() string { return "positions" }

// CurrentStopPrice is the broker-resident stop: the original protective level
// until the stop has been moved, the trailing stop afterwards.
func (p *Position) CurrentStopPrice() float64 {
	if p.StopMoved {
		return p.TrailingStop
	}
	return p.StopLossPrice
}

func (p *Position) IsLong() bool { return p.Direction == DirectionLong }
