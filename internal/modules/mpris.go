package modules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jmylchreest/statline/internal/status"
)

const (
	mprisPlayingIcon = '\U000F0F74'
	mprisPausedIcon  = '\U000F03E4'

	mprisInterval = 30 * time.Second

	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	mprisPlayerIntf = "org.mpris.MediaPlayer2.Player"
)

// connectSessionBus is swapped out in tests.
var connectSessionBus = func() (*dbus.Conn, error) {
	return dbus.SessionBus()
}

// Mpris shows track metadata from the first active MPRIS player on the
// session bus. The block is hidden when nothing is playing.
type Mpris struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMpris creates the mpris block.
func NewMpris() *Mpris {
	return &Mpris{}
}

// Name implements Block.
func (m *Mpris) Name() string { return "mpris" }

func (m *Mpris) bus() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := connectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", ErrUnavailable, err)
	}
	m.conn = conn
	return conn, nil
}

// Update implements Block.
func (m *Mpris) Update(_ context.Context, _ time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(mprisInterval)

	conn, err := m.bus()
	if err != nil {
		return status.BlockOutput{}, next, err
	}

	players, err := listPlayers(conn)
	if err != nil {
		return status.BlockOutput{}, next, err
	}

	// Hidden output when no player is around or everything is stopped.
	hidden := status.BlockOutput{Name: m.Name()}

	for _, player := range players {
		obj := conn.Object(player, mprisObjectPath)

		playback, err := obj.GetProperty(mprisPlayerIntf + ".PlaybackStatus")
		if err != nil {
			continue
		}
		var playState string
		if err := playback.Store(&playState); err != nil || playState == "Stopped" {
			continue
		}

		metadata, err := obj.GetProperty(mprisPlayerIntf + ".Metadata")
		if err != nil {
			continue
		}
		var meta map[string]dbus.Variant
		if err := metadata.Store(&meta); err != nil {
			continue
		}

		icon := rune(mprisPausedIcon)
		if playState == "Playing" {
			icon = mprisPlayingIcon
		}

		return status.BlockOutput{
			Name:          m.Name(),
			Icon:          icon,
			Text:          metaString(meta, "xesam:title"),
			SecondaryText: metaArtist(meta),
			Attention:     status.AttentionNormal,
		}, next, nil
	}

	return hidden, next, nil
}

// Watch implements Watcher. Any PropertiesChanged from a player or a
// player appearing/disappearing on the bus triggers a re-poll.
func (m *Mpris) Watch(ctx context.Context, notify func()) error {
	conn, err := m.bus()
	if err != nil {
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisObjectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("failed to add properties match: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return fmt.Errorf("failed to add name owner match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if sig.Name == "org.freedesktop.DBus.NameOwnerChanged" {
				if len(sig.Body) < 1 {
					continue
				}
				name, _ := sig.Body[0].(string)
				if !strings.HasPrefix(name, mprisPrefix) {
					continue
				}
			}
			notify()
		}
	}
}

func listPlayers(conn *dbus.Conn) ([]string, error) {
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("%w: ListNames: %v", ErrUnavailable, err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	return players, nil
}

func metaString(meta map[string]dbus.Variant, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	var s string
	if err := v.Store(&s); err != nil {
		return ""
	}
	return s
}

func metaArtist(meta map[string]dbus.Variant) string {
	v, ok := meta["xesam:artist"]
	if !ok {
		return ""
	}
	var artists []string
	if err := v.Store(&artists); err != nil || len(artists) == 0 {
		var single string
		if err := v.Store(&single); err == nil {
			return single
		}
		return ""
	}
	return artists[0]
}
