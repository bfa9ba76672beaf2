package main

import (
	"fmt"
	"strings"
)

// command is a single parsed request: cmd$args, with args optionally split
// into two fields on the first space (§4.6).
type command struct {
	verb string
	args string
}

// parseCommand parses one datagram payload into a command. The wire grammar
// is ASCII `cmd$args`: the verb ends at the first `$`, and any later `$`
// stays part of args. Leading whitespace in the datagram and between `$`
// and args is stripped, as is trailing whitespace. Returns ok=false when
// there is no `$` or the verb is empty — callers must drop such datagrams
// silently (§7, "malformed input").
func parseCommand(raw []byte) (command, bool) {
	text := strings.TrimLeft(string(raw), " \t\r\n")
	// Trailing NUL (and anything after it) is not part of the command.
	if i := strings.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	idx := strings.IndexByte(text, '$')
	if idx < 0 {
		return command{}, false
	}
	verb := text[:idx]
	if verb == "" {
		return command{}, false
	}
	args := strings.TrimLeft(text[idx+1:], " \t")
	args = strings.TrimRight(args, " \t\r\n")
	return command{verb: verb, args: args}, true
}

// splitArgs splits args into two fields on the first space, for commands
// like `sayto` that take a recipient plus free text. If there is no space,
// rest is empty.
func splitArgs(args string) (first, rest string) {
	i := strings.IndexByte(args, ' ')
	if i < 0 {
		return args, ""
	}
	return args[:i], args[i+1:]
}

// buildDatagram frames a reply the way §4.6 requires: a single channel
// byte, the text (with a trailing newline added if missing), then a
// terminating NUL.
func buildDatagram(channel byte, text string) []byte {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	out := make([]byte, 0, 1+len(text)+1)
	out = append(out, channel)
	out = append(out, text...)
	out = append(out, 0)
	return out
}

// serverReply is shorthand for the recurring `[Server] <text>` global-channel
// reply used throughout §4.6/§7.
func serverReply(format string, args ...any) []byte {
	return buildDatagram(channelGlobal, "[Server] "+fmt.Sprintf(format, args...))
}

// validateName checks a proposed display name (client or room) against
// §3's bounds: non-empty after trimming, at most maxLen bytes, and free of
// `$`, NUL, CR and LF. Inner spaces are accepted; such a name cannot be
// addressed through sayto, whose recipient field ends at the first space.
func validateName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is empty")
	}
	if len(name) > maxLen {
		return "", fmt.Errorf("name exceeds %d bytes", maxLen)
	}
	if strings.ContainsAny(name, "$\x00\r\n") {
		return "", fmt.Errorf("name contains a reserved character")
	}
	return name, nil
}
