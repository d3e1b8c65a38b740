package modules

import (
	"context"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
)

// clockIcons indexed by hour on a 12-hour dial; index 0 is 12 o'clock.
var clockIcons = [12]rune{
	'\U000F1456',
	'\U000F144B', '\U000F144C', '\U000F144D', '\U000F144E',
	'\U000F144F', '\U000F1450', '\U000F1451', '\U000F1452',
	'\U000F1453', '\U000F1454', '\U000F1455',
}

// Date shows the local time and date.
type Date struct {
	timeLayout string
	dateLayout string
}

// NewDate creates the date block.
func NewDate(cfg config.DateConfig) *Date {
	d := &Date{
		timeLayout: cfg.TimeLayout,
		dateLayout: cfg.DateLayout,
	}
	if d.timeLayout == "" {
		d.timeLayout = "3:04 pm"
	}
	if d.dateLayout == "" {
		d.dateLayout = "Mon, Jan 2"
	}
	return d
}

// Name implements Block.
func (d *Date) Name() string { return "date" }

// Update implements Block. The next poll lands on the minute boundary so
// the displayed time never lags.
func (d *Date) Update(_ context.Context, now time.Time) (status.BlockOutput, NextUpdate, error) {
	out := status.BlockOutput{
		Name:          d.Name(),
		Icon:          clockIcons[now.Hour()%12],
		Text:          now.Format(d.timeLayout),
		SecondaryText: now.Format(d.dateLayout),
		Attention:     status.AttentionNormal,
	}

	next := now.Truncate(time.Minute).Add(time.Minute)
	return out, At(next), nil
}
