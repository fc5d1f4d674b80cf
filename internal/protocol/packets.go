// Package protocol implements the line-oriented text protocol spoken between
// the game server and player clients. Every request is one line terminated
// by '\n'; fields are separated by a single space and numeric fields have a
// fixed width.
package protocol

// Command is the three-letter request keyword.
type Command string

// Request keywords.
const (
	CmdStart      Command = "SNG" // datagram: start a random game
	CmdDebug      Command = "DBG" // datagram: start a game with a chosen code
	CmdTry        Command = "TRY" // datagram: submit a trial
	CmdQuit       Command = "QUT" // datagram: quit the current game
	CmdShowTrials Command = "STR" // stream: trial log file
	CmdScoreboard Command = "SSB" // stream: top scores file
)

// ReplyCode is the three-letter reply keyword.
type ReplyCode string

// Reply keywords. ReplyGeneric answers requests whose command is unknown.
const (
	ReplyStart      ReplyCode = "RSG"
	ReplyDebug      ReplyCode = "RDB"
	ReplyTry        ReplyCode = "RTR"
	ReplyQuit       ReplyCode = "RQT"
	ReplyShowTrials ReplyCode = "RST"
	ReplyScoreboard ReplyCode = "RSS"
	ReplyGeneric    ReplyCode = "ERR"
)

// Status is the second word of a reply.
type Status string

// Reply status words.
const (
	StatusOK         Status = "OK"
	StatusNOK        Status = "NOK"
	StatusERR        Status = "ERR"
	StatusDUP        Status = "DUP"
	StatusINV        Status = "INV"
	StatusENT        Status = "ENT"
	StatusETM        Status = "ETM"
	StatusACT        Status = "ACT"
	StatusFIN        Status = "FIN"
	StatusEMPTY      Status = "EMPTY"
	StatusUnparsable Status = "?"
)

// Channel identifies the transport a command travels on.
type Channel int

const (
	ChannelUnknown Channel = iota
	ChannelDatagram
	ChannelStream
)

func (c Channel) String() string {
	switch c {
	case ChannelDatagram:
		return "udp"
	case ChannelStream:
		return "tcp"
	default:
		return "unknown"
	}
}

// GenericError is the reply to a request whose command is not recognised.
const GenericError = "ERR\n"

// MaxRequestSize bounds a single request line, newline included.
const MaxRequestSize = 64

// Known reports whether c is one of the six request keywords.
func (c Command) Known() bool {
	return c.Channel() != ChannelUnknown
}

// Channel returns the transport c belongs to.
func (c Command) Channel() Channel {
	switch c {
	case CmdStart, CmdDebug, CmdTry, CmdQuit:
		return ChannelDatagram
	case CmdShowTrials, CmdScoreboard:
		return ChannelStream
	default:
		return ChannelUnknown
	}
}

// ReplyCode returns the keyword the server answers c with.
func (c Command) ReplyCode() ReplyCode {
	switch c {
	case CmdStart:
		return ReplyStart
	case CmdDebug:
		return ReplyDebug
	case CmdTry:
		return ReplyTry
	case CmdQuit:
		return ReplyQuit
	case CmdShowTrials:
		return ReplyShowTrials
	case CmdScoreboard:
		return ReplyScoreboard
	default:
		return ReplyGeneric
	}
}

// CommandOf extracts the command keyword from a request line.
func CommandOf(request string) Command {
	if len(request) < 3 {
		return ""
	}
	c := Command(request[:3])
	if !c.Known() {
		return ""
	}
	if len(request) > 3 && request[3] != ' ' && request[3] != '\n' {
		return ""
	}
	return c
}
