package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/execx"
	"github.com/jmylchreest/statline/internal/status"
)

type networkState int

const (
	netUnknown networkState = iota
	netDisconnected
	netDisabled
	netConnecting
	netConnected
	netPacketLoss
)

func (s networkState) label() string {
	switch s {
	case netDisconnected:
		return "Not connected"
	case netDisabled:
		return "Off"
	case netConnecting:
		return "Connecting"
	case netPacketLoss:
		return "No Internet"
	case netConnected:
		return ""
	default:
		return "Status unknown"
	}
}

var (
	wirelessConnectionIcons = [5]rune{'\U000F092F', '\U000F091F', '\U000F0922', '\U000F0925', '\U000F0928'}
	wirelessPacketLossIcons = [5]rune{'\U000F092B', '\U000F0920', '\U000F0923', '\U000F0926', '\U000F0929'}
)

const (
	networkDisconnectedIcon = '\U000F092F'
	networkDisabledIcon     = '\U000F092E'
	networkUnknownIcon      = '\U000F092B'

	networkInterval = 5 * time.Second
	probeAddr       = "8.8.8.8"
)

// Signal curve bounds borrowed from NetworkManager.
const (
	signalMaxDbm  = -30
	noiseFloorDbm = -80
)

// Network reports wireless link state, ssid and signal strength.
type Network struct {
	iface  string
	runner execx.Runner
}

// NewNetwork creates the network block for the configured interface.
func NewNetwork(cfg config.NetworkConfig, runner execx.Runner) *Network {
	return &Network{
		iface:  cfg.Interface,
		runner: runner,
	}
}

// Name implements Block.
func (n *Network) Name() string { return "network" }

// Update implements Block.
func (n *Network) Update(ctx context.Context, _ time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(networkInterval)

	state, err := n.linkState(ctx)
	if err != nil {
		return status.BlockOutput{}, next, err
	}

	var ssid string
	strength := 0
	if state == netConnected || state == netUnknown {
		ssid, strength, err = n.stationInfo(ctx)
		if err != nil {
			return status.BlockOutput{}, next, err
		}
		if ssid == "" {
			state = netDisconnected
		} else {
			state = netConnected
			if n.packetLoss(ctx) {
				state = netPacketLoss
			}
		}
	}

	out := status.BlockOutput{
		Name: n.Name(),
		Icon: networkIcon(state, strength),
	}
	switch state {
	case netConnected, netPacketLoss:
		out.Attention = status.AttentionNormal
		if ssid != "" {
			out.Text = ssid
			out.SecondaryText = state.label()
		} else {
			out.Text = state.label()
		}
	default:
		out.Attention = status.AttentionDim
		out.Text = state.label()
	}
	return out, next, nil
}

// linkState classifies `ip link show` output for the interface.
func (n *Network) linkState(ctx context.Context) (networkState, error) {
	raw, err := n.runner.Run(ctx, "ip", "link", "show", n.iface)
	if err != nil {
		return netUnknown, fmt.Errorf("%w: ip: %v", ErrUnavailable, err)
	}
	s := string(raw)

	switch {
	case strings.Contains(s, "state UP"):
		return netConnected, nil
	case strings.Contains(s, "state DOWN") && strings.Contains(s, "NO-CARRIER"):
		return netDisconnected, nil
	case strings.Contains(s, "state DOWN"):
		return netDisabled, nil
	case strings.Contains(s, "state DORMANT"):
		return netConnecting, nil
	default:
		return netUnknown, nil
	}
}

// stationInfo parses `iw dev <iface> link` for ssid and signal percent.
// Returns an empty ssid when the interface is not associated.
func (n *Network) stationInfo(ctx context.Context) (string, int, error) {
	raw, err := n.runner.Run(ctx, "iw", "dev", n.iface, "link")
	if err != nil {
		return "", 0, fmt.Errorf("%w: iw: %v", ErrUnavailable, err)
	}

	var ssid string
	strength := 0
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "SSID: "); ok {
			ssid = rest
			continue
		}
		if rest, ok := strings.CutPrefix(line, "signal: "); ok {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				continue
			}
			dbm, err := strconv.Atoi(fields[0])
			if err != nil {
				return "", 0, &ParseError{Block: n.Name(), Output: line, Err: err}
			}
			strength = dbmToPercent(dbm)
		}
	}
	return ssid, strength, nil
}

// packetLoss probes connectivity; a failed ping means lost packets.
func (n *Network) packetLoss(ctx context.Context) bool {
	_, err := n.runner.Run(ctx, "ping", "-c", "1", "-W", "2", "-I", n.iface, probeAddr)
	return err != nil
}

// dbmToPercent maps signal strength onto 0..100 with the quadratic
// curve used by i3status and NetworkManager.
func dbmToPercent(dbm int) int {
	if dbm < noiseFloorDbm {
		dbm = noiseFloorDbm
	}
	if dbm > signalMaxDbm {
		dbm = signalMaxDbm
	}
	f := float64(dbm)
	return int(-0.04*(f+30)*(f+30) + 100)
}

func networkIcon(state networkState, strength int) rune {
	switch state {
	case netDisconnected:
		return networkDisconnectedIcon
	case netDisabled:
		return networkDisabledIcon
	case netUnknown:
		return networkUnknownIcon
	}

	icons := wirelessConnectionIcons[:]
	if state == netPacketLoss {
		icons = wirelessPacketLossIcons[:]
	}
	i := len(icons) * strength / 100
	if i >= len(icons) {
		i = len(icons) - 1
	}
	if i < 0 {
		i = 0
	}
	return icons[i]
}
