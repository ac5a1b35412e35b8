package tui

import "time"

const (
	// TickInterval is how often the dashboard drains its event queue.
	TickInterval = 200 * time.Millisecond

	InputWidth = 60

	// Layout
	HeaderHeight           = 4
	FooterHeight           = 3
	CardHeight             = 3
	ProgressBarWidthOffset = 36
	MinProgressBarWidth    = 10
	MaxTitleWidth          = 60
)
