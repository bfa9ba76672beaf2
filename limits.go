package main

import "time"

// Protocol-level limits and timing constants (§6 "Configurable constants").
// These mirror the envDefault tags on Config in config.go. The running
// server takes its values from Config, which flags, the config file and
// the environment can override; of the constants in this block, only
// adminPort is read by the code.
const (
	// defaultPort is the well-known UDP port the endpoint binds (§4.1).
	defaultPort = 12000

	// adminPort is the UDP source port that marks a sender as admin (§4.6).
	adminPort = 6666

	// bufferSize is the maximum datagram size, including the trailing NUL
	// on replies (§6).
	bufferSize = 1024

	// maxNameLength bounds a client or room display name, in bytes (§3).
	maxNameLength = 63

	// maxMuteList bounds the number of names a client may mute (§3, §4.4).
	maxMuteList = 16

	// historyCapacity is the fixed size of every history ring (§3, §4.2).
	historyCapacity = 15

	// roomBuckets is the number of buckets in the room registry's hash
	// table (§4.5).
	roomBuckets = 32

	// inactivityThreshold is how long a client may go without sending a
	// valid command before the sweeper pings it (§4.7).
	inactivityThreshold = 300 * time.Second

	// pingTimeout is how long a client has to respond (with any valid
	// command) after being pinged before it is evicted (§4.7).
	pingTimeout = 10 * time.Second

	// sweepInterval bounds how long the sweeper ever sleeps between
	// checks, even when no client is due sooner (§4.7).
	sweepInterval = 500 * time.Millisecond
)

// Outgoing channel bytes (§4.6).
const (
	channelGlobal  byte = 0x00
	channelRoom    byte = 0x01
	channelPrivate byte = 0x02
)
