package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
)

type chargeStatus int

const (
	chargeUnknown chargeStatus = iota
	chargeDischarging
	chargeCharging
	chargeFull
)

func parseChargeStatus(s string) chargeStatus {
	switch strings.TrimSpace(s) {
	case "Discharging":
		return chargeDischarging
	case "Charging":
		return chargeCharging
	case "Full":
		return chargeFull
	default:
		return chargeUnknown
	}
}

var dischargingIcons = [11]rune{
	'', '', '', '', '', '',
	'', '', '', '', '',
}

var chargingIcons = [11]rune{
	'', '', '', '', '', '',
	'', '', '', '', '',
}

const (
	batteryFullIcon    = ''
	batteryUnknownIcon = ''

	batteryInterval = 5 * time.Second

	// Reads feeding each moving-average rate are capped so old history
	// keeps some weight without freezing the estimate.
	batteryMaxReads = 40
)

type batteryRead struct {
	at     time.Time
	status chargeStatus
	charge int64
}

// Battery reports charge level and a completion-time estimate derived
// from a moving average of observed charge/discharge rates.
type Battery struct {
	baseDir        string
	warningPercent int64
	alarmPercent   int64

	chargeFull int64

	// Rates are nanoseconds per charge unit; discharging rates are
	// negative (charge decreases as time advances).
	chargingReads      int
	avgChargingRate    float64
	dischargingReads   int
	avgDischargingRate float64

	lastRead *batteryRead
}

// NewBattery creates the battery block for the configured supply.
func NewBattery(cfg config.BatteryConfig) *Battery {
	return &Battery{
		baseDir:        filepath.Join("/sys/class/power_supply", cfg.BatteryID),
		warningPercent: int64(cfg.WarningPercent),
		alarmPercent:   int64(cfg.AlarmPercent),
	}
}

// Name implements Block.
func (b *Battery) Name() string { return "battery" }

// Update implements Block.
func (b *Battery) Update(_ context.Context, now time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(batteryInterval)

	full, err := b.readScalar("charge_full", "energy_full")
	if err != nil {
		return status.BlockOutput{}, next, err
	}
	if full <= 0 {
		return status.BlockOutput{}, next, &ParseError{Block: b.Name(), Output: "charge_full", Err: fmt.Errorf("non-positive max charge %d", full)}
	}
	b.chargeFull = full

	charge, err := b.readScalar("charge_now", "energy_now")
	if err != nil {
		return status.BlockOutput{}, next, err
	}

	raw, err := os.ReadFile(filepath.Join(b.baseDir, "status"))
	if err != nil {
		return status.BlockOutput{}, next, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.baseDir, err)
	}

	read := batteryRead{at: now, status: parseChargeStatus(string(raw)), charge: charge}
	b.observe(read)

	percent := charge * 100 / b.chargeFull
	out := status.BlockOutput{
		Name:          b.Name(),
		Icon:          batteryIcon(read.status, percent),
		Text:          fmt.Sprintf("%d%%", percent),
		SecondaryText: b.secondaryText(read, now),
		Attention:     b.attention(read),
	}
	if read.status == chargeFull {
		out.Text = "Full"
	}

	return out, next, nil
}

// readScalar reads the first of the candidate sysfs files that exists.
// Supplies expose either charge_* (µAh) or energy_* (µWh).
func (b *Battery) readScalar(names ...string) (int64, error) {
	var lastErr error
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(b.baseDir, name))
		if err != nil {
			lastErr = err
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, &ParseError{Block: b.Name(), Output: strings.TrimSpace(string(raw)), Err: err}
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.baseDir, lastErr)
}

// observe folds a fresh read into the moving-average rates.
func (b *Battery) observe(read batteryRead) {
	last := b.lastRead
	b.lastRead = &read

	if last == nil || last.status != read.status {
		return
	}
	if read.status != chargeCharging && read.status != chargeDischarging {
		return
	}

	elapsed := read.at.Sub(last.at)
	chargeDiff := read.charge - last.charge
	if elapsed < batteryInterval || chargeDiff == 0 {
		return
	}

	rate := float64(elapsed.Nanoseconds()) / float64(chargeDiff)
	switch read.status {
	case chargeDischarging:
		if rate < 0 {
			b.avgDischargingRate = foldRate(b.avgDischargingRate, b.dischargingReads, rate)
			if b.dischargingReads < batteryMaxReads {
				b.dischargingReads++
			}
		}
	case chargeCharging:
		if rate > 0 {
			b.avgChargingRate = foldRate(b.avgChargingRate, b.chargingReads, rate)
			if b.chargingReads < batteryMaxReads {
				b.chargingReads++
			}
		}
	}
}

func foldRate(avg float64, reads int, sample float64) float64 {
	n := float64(reads)
	return (avg*n)/(n+1) + sample/(n+1)
}

// completionTime estimates when the battery will be full or empty.
// Returns the zero time when no usable rate is known yet.
func (b *Battery) completionTime(read batteryRead, now time.Time) time.Time {
	var end int64
	var rate float64
	switch read.status {
	case chargeCharging:
		end = b.chargeFull
		rate = b.avgChargingRate
	case chargeDischarging:
		end = 0
		rate = b.avgDischargingRate
	default:
		return time.Time{}
	}
	if rate == 0 {
		return time.Time{}
	}

	nanosLeft := float64(end-read.charge) * rate
	return now.Add(time.Duration(nanosLeft))
}

func (b *Battery) secondaryText(read batteryRead, now time.Time) string {
	if read.status == chargeFull {
		return "Plugged in"
	}

	completion := b.completionTime(read, now)
	if completion.IsZero() {
		return ""
	}

	minutesLeft := int(completion.Sub(now).Minutes())
	switch {
	case minutesLeft <= 0:
		return ""
	case minutesLeft <= 30:
		return fmt.Sprintf("%d min left", minutesLeft)
	case read.status == chargeCharging:
		return "Full " + humanize.Time(completion)
	default:
		return "Until " + completion.Format("3:04 pm")
	}
}

func (b *Battery) attention(read batteryRead) status.Attention {
	if read.status != chargeDischarging || b.chargeFull == 0 {
		return status.AttentionNormal
	}
	percent := read.charge * 100 / b.chargeFull
	switch {
	case percent < b.alarmPercent:
		return status.AttentionAlarmPulse
	case percent < b.warningPercent:
		return status.AttentionWarningPulse
	default:
		return status.AttentionNormal
	}
}

func batteryIcon(st chargeStatus, percent int64) rune {
	index := func(icons []rune) rune {
		i := int(percent) * len(icons) / 100
		if i >= len(icons) {
			i = len(icons) - 1
		}
		if i < 0 {
			i = 0
		}
		return icons[i]
	}

	switch st {
	case chargeCharging:
		return index(chargingIcons[:])
	case chargeDischarging:
		return index(dischargingIcons[:])
	case chargeFull:
		return batteryFullIcon
	default:
		return batteryUnknownIcon
	}
}
