package main

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// sendFunc delivers one framed datagram to addr. Implemented by the
// listener's UDP endpoint; injectable in tests.
type sendFunc func(addr netip.AddrPort, data []byte) error

// Dispatcher parses and executes one command per call (§4.6). It holds no
// state of its own beyond the registries and the hooks it was built
// with — a worker constructs nothing but borrows one shared Dispatcher
// for the whole process lifetime.
type Dispatcher struct {
	core          *Core
	send          sendFunc
	log           zerolog.Logger
	maxNameLength int

	// Optional observability hooks (SPEC_FULL §2 EXPANSION). Left nil by
	// tests that don't care about metrics; main.go wires these to the
	// Prometheus counters in metrics.go.
	onCommand  func(verb string)
	onMessage  func()
	onEviction func()
}

func newDispatcher(core *Core, send sendFunc, log zerolog.Logger, maxNameLength int) *Dispatcher {
	return &Dispatcher{core: core, send: send, log: log, maxNameLength: maxNameLength}
}

func (d *Dispatcher) sendTo(addr netip.AddrPort, data []byte) {
	if err := d.send(addr, data); err != nil {
		d.log.Warn().Err(err).Str("addr", addr.String()).Msg("send failed, dropping")
	}
}

func (d *Dispatcher) broadcast(targets []broadcastTarget, data []byte) {
	for _, t := range targets {
		d.sendTo(t.addr, data)
	}
}

// Dispatch parses and executes one datagram's command (§4.6, §7).
// reqID is a correlation ID for log lines only; it carries no protocol
// weight.
func (d *Dispatcher) Dispatch(addr netip.AddrPort, payload []byte, reqID string) {
	cmd, ok := parseCommand(payload)
	if !ok {
		d.log.Debug().Str("addr", addr.String()).Str("req_id", reqID).Msg("malformed datagram, dropped")
		return
	}

	logger := d.log.With().Str("req_id", reqID).Str("addr", addr.String()).Str("cmd", cmd.verb).Logger()
	if d.onCommand != nil {
		d.onCommand(cmd.verb)
	}

	sender := d.core.Clients.findByAddr(addr)
	if cmd.verb != "conn" && sender != nil {
		d.core.Clients.touch(sender, time.Now())
	}

	switch cmd.verb {
	case "conn":
		d.handleConn(addr, cmd.args, logger)
	case "disconn":
		d.handleDisconn(sender, logger)
	case "say":
		d.handleSay(sender, cmd.args, logger)
	case "sayto":
		d.handleSayto(sender, cmd.args, logger)
	case "mute":
		d.handleMute(sender, cmd.args, logger)
	case "unmute":
		d.handleUnmute(sender, cmd.args, logger)
	case "rename":
		d.handleRename(sender, addr, cmd.args, logger)
	case "kick":
		d.handleKick(addr, cmd.args, logger)
	case "createroom":
		d.handleCreateRoom(sender, cmd.args, logger)
	case "joinroom":
		d.handleJoinRoom(sender, cmd.args, logger)
	case "sayroom":
		d.handleSayRoom(sender, cmd.args, logger)
	case "leaveroom":
		d.handleLeaveRoom(sender, logger)
	case "kickroom":
		d.handleKickRoom(addr, cmd.args, logger)
	case "re-ping":
		// The activity update above is re-ping's entire effect (§4.6).
	case "help":
		d.handleHelp(sender)
	case "who":
		d.handleWho(sender)
	case "whoroom":
		d.handleWhoRoom(sender)
	default:
		logger.Debug().Msg("unknown command verb, dropped")
	}
}

func (d *Dispatcher) handleConn(addr netip.AddrPort, args string, logger zerolog.Logger) {
	name, err := validateName(args, d.maxNameLength)
	if err != nil {
		logger.Debug().Err(err).Msg("conn rejected: invalid name")
		return
	}
	c := d.core.Clients.add(addr, name, time.Now())
	if c == nil {
		logger.Debug().Str("name", name).Msg("conn rejected: name or address taken")
		return
	}
	d.sendTo(addr, serverReply("%s successfully connected", name))
	for _, line := range d.core.Clients.globalHistory() {
		d.sendTo(addr, buildDatagram(channelGlobal, line))
	}
}

func (d *Dispatcher) handleDisconn(sender *Client, logger zerolog.Logger) {
	if sender == nil {
		return // P8: a second disconn from an unknown address is a no-op.
	}
	addr := sender.Addr
	d.core.DestroyClient(sender)
	d.sendTo(addr, serverReply("Disconnected. Bye!"))
}

func (d *Dispatcher) handleSay(sender *Client, text string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s", sender.Name, text)
	d.core.Clients.appendGlobalHistory(line)
	d.broadcast(d.core.Clients.fanoutTargets(sender.Name, ""), buildDatagram(channelGlobal, line))
	if d.onMessage != nil {
		d.onMessage()
	}
}

func (d *Dispatcher) handleSayto(sender *Client, args string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	recipientName, text := splitArgs(args)
	if recipientName == "" {
		return
	}
	target := d.core.Clients.findByName(recipientName)
	if target == nil {
		return // unknown recipient: silent per §7.
	}
	if d.core.Clients.isMuted(target, sender.Name) {
		return // sender is never informed, per §9 open question (c).
	}
	line := fmt.Sprintf("[%s] %s", sender.Name, text)
	d.sendTo(target.Addr, buildDatagram(channelPrivate, line))
	if d.onMessage != nil {
		d.onMessage()
	}
}

func (d *Dispatcher) handleMute(sender *Client, target string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	d.core.Clients.mute(sender, target) // success or not, mute$ is silent.
}

func (d *Dispatcher) handleUnmute(sender *Client, target string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	d.core.Clients.unmute(sender, target) // silent either way.
}

func (d *Dispatcher) handleRename(sender *Client, addr netip.AddrPort, args string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	newName, err := validateName(args, d.maxNameLength)
	if err != nil {
		return
	}
	if !d.core.Clients.rename(addr, newName) {
		return // collision: silent, per §9 open question (b).
	}
	d.sendTo(addr, serverReply("You are now known as %s", newName))
}

func (d *Dispatcher) handleKick(addr netip.AddrPort, args string, logger zerolog.Logger) {
	if addr.Port() != adminPort {
		d.sendTo(addr, serverReply("You are not an admin"))
		return
	}
	targetName := strings.TrimSpace(args)
	target := d.core.Clients.findByName(targetName)
	if target == nil {
		d.sendTo(addr, serverReply("No such client: %s", targetName))
		return
	}
	targetAddr := target.Addr
	d.core.DestroyClient(target)
	d.sendTo(targetAddr, serverReply("You have been removed from the chat"))
	d.broadcast(d.core.Clients.fanoutTargets("", ""), serverReply("%s has been removed from the chat", targetName))
	if d.onEviction != nil {
		d.onEviction()
	}
}

func (d *Dispatcher) handleCreateRoom(sender *Client, args string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	name, err := validateName(args, d.maxNameLength)
	if err != nil {
		return
	}
	_, err = d.core.CreateRoom(sender, name)
	switch {
	case errors.Is(err, errAlreadyInRoom):
		d.sendTo(sender.Addr, serverReply("You are already in a room"))
	case errors.Is(err, errRoomExists):
		d.sendTo(sender.Addr, serverReply("Room %s already exists", name))
	case err != nil:
		logger.Warn().Err(err).Msg("createroom failed unexpectedly")
	default:
		d.sendTo(sender.Addr, serverReply("Room %s created; you joined it", name))
	}
}

func (d *Dispatcher) handleJoinRoom(sender *Client, args string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	name := strings.TrimSpace(args)
	if name == "" {
		return
	}
	room, err := d.core.JoinRoom(sender, name)
	switch {
	case errors.Is(err, errAlreadyInRoom):
		d.sendTo(sender.Addr, serverReply("You are already in a room"))
	case errors.Is(err, errNoSuchRoom):
		d.sendTo(sender.Addr, serverReply("Room not found"))
	case err != nil:
		logger.Warn().Err(err).Msg("joinroom failed unexpectedly")
	default:
		for _, line := range d.core.Rooms.historyOf(room) {
			d.sendTo(sender.Addr, buildDatagram(channelRoom, line))
		}
		d.sendTo(sender.Addr, serverReply("Joined room %s", name))
	}
}

func (d *Dispatcher) handleSayRoom(sender *Client, text string, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	room := d.core.Clients.currentRoom(sender)
	if room == nil {
		d.sendTo(sender.Addr, serverReply("You are not in a room"))
		return
	}
	line := fmt.Sprintf("[%s|%s] %s", room.Name, sender.Name, text)
	d.core.Rooms.appendHistory(room, line)
	d.broadcast(d.core.Rooms.fanoutTargets(room, sender.Name, ""), buildDatagram(channelRoom, line))
	if d.onMessage != nil {
		d.onMessage()
	}
}

func (d *Dispatcher) handleLeaveRoom(sender *Client, logger zerolog.Logger) {
	if sender == nil {
		return
	}
	room, err := d.core.LeaveRoom(sender)
	if err != nil {
		d.sendTo(sender.Addr, serverReply("You are not in a room"))
		return
	}
	d.sendTo(sender.Addr, serverReply("You left room %s", room.Name))
}

func (d *Dispatcher) handleKickRoom(addr netip.AddrPort, args string, logger zerolog.Logger) {
	if addr.Port() != adminPort {
		d.sendTo(addr, serverReply("You are not an admin"))
		return
	}
	targetName := strings.TrimSpace(args)
	target := d.core.Clients.findByName(targetName)
	if target == nil {
		d.sendTo(addr, serverReply("No such client: %s", targetName))
		return
	}
	room, err := d.core.KickFromRoom(target)
	if err != nil {
		d.sendTo(addr, serverReply("%s is not in a room", targetName))
		return
	}
	d.sendTo(target.Addr, serverReply("You have been removed from room %s", room.Name))
	d.sendTo(addr, serverReply("%s removed from room %s", targetName, room.Name))
}

// handleHelp, handleWho and handleWhoRoom are SPEC_FULL.md's three
// additional commands. All three are reads or static text; none mutate
// mute lists, room membership, the heap, or any ring (SPEC_FULL §4.6).

func (d *Dispatcher) handleHelp(sender *Client) {
	if sender == nil {
		return
	}
	d.sendTo(sender.Addr, serverReply(
		"commands: say$text, sayto$name text, mute$name, unmute$name, rename$name, "+
			"createroom$name, joinroom$name, sayroom$text, leaveroom$, disconn$, who$, whoroom$"))
}

func (d *Dispatcher) handleWho(sender *Client) {
	if sender == nil {
		return
	}
	d.sendTo(sender.Addr, serverReply("online: %s", strings.Join(d.core.Clients.names(), ", ")))
}

func (d *Dispatcher) handleWhoRoom(sender *Client) {
	if sender == nil {
		return
	}
	room := d.core.Clients.currentRoom(sender)
	if room == nil {
		d.sendTo(sender.Addr, serverReply("You are not in a room"))
		return
	}
	d.sendTo(sender.Addr, serverReply("in %s: %s", room.Name, strings.Join(d.core.Rooms.memberNames(room), ", ")))
}
