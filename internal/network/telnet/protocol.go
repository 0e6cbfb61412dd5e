package telnet

import (
	"fmt"
	"strings"
)

// A good place to start with the Telnet protocol is Wikipedia:
// https://en.wikipedia.org/wiki/Telnet
//
// This package implements the negotiation layer that BBS login servers need:
// enough of the option grammar to discover the terminal type, the window size
// and the environment a client is willing to share. Everything else is parsed
// far enough to be skipped safely.
//
// RFCs of particular interest:
// - RFC 854  : Telnet Protocol Specification
// - RFC 856  : Telnet Binary Transmission
// - RFC 857  : Telnet Echo Option
// - RFC 858  : Telnet Suppress Go Ahead Option
// - RFC 859  : Telnet Status Option
// - RFC 1073 : Telnet Window Size Option
// - RFC 1091 : Telnet Terminal-Type Option
// - RFC 1408 : Telnet Environment Option (deprecated)
// - RFC 1572 : Telnet Environment Option

// Command is a byte following IAC.
type Command byte

// Option is a negotiable capability code.
type Option byte

const (
	// RFC 854: Telnet Protocol Specification
	SE   Command = 240 // Sub negotiation End
	NOP  Command = 241 // No Operation
	DM   Command = 242 // Data Mark
	BRK  Command = 243 // Break
	IP   Command = 244 // Interrupt Process
	AO   Command = 245 // Abort Output
	AYT  Command = 246 // Are You There?
	EC   Command = 247 // Erase Character
	EL   Command = 248 // Erase Line
	GA   Command = 249 // Go Ahead
	SB   Command = 250 // Sub negotiation Begin
	WILL Command = 251 // Will
	WONT Command = 252 // Won't
	DO   Command = 253 // Do
	DONT Command = 254 // Don't
	IAC  Command = 255 // Interpret As Command
)

// Sub-negotiation tags
const (
	IS   byte = 0
	SEND byte = 1
	INFO byte = 2

	VAR     byte = 0
	VALUE   byte = 1
	ESC     byte = 2
	USERVAR byte = 3
)

// Telnet Options
const (
	TransmitBinary    Option = 0   // RFC 856
	Echo              Option = 1   // RFC 857
	SGA               Option = 3   // RFC 858 - Suppress Go Ahead
	Status            Option = 5   // RFC 859
	TimingMark        Option = 6   // RFC 860
	SendLocation      Option = 23  // RFC 779
	TType             Option = 24  // RFC 1091 - Terminal Type
	NAWS              Option = 31  // RFC 1073 - Negotiate About Window Size
	TerminalSpeed     Option = 32  // RFC 1079
	RemoteFlowControl Option = 33  // RFC 1372
	Linemode          Option = 34  // RFC 1184
	XDisplayLocation  Option = 35  // RFC 1096
	NewEnvironOld     Option = 36  // RFC 1408 - deprecated NEW-ENVIRON
	Authentication    Option = 37  // RFC 2941
	Encrypt           Option = 38  // RFC 2946
	NewEnviron        Option = 39  // RFC 1572 - NEW-ENVIRON
	AreYouThere       Option = 246 // RFC 854
	Exopl             Option = 255 // RFC 861 - Extended Options List
)

// iac is the marker as a plain byte, for buffer scans.
const iac = byte(IAC)

var commandNames = map[Command]string{
	SE:   "SE",
	NOP:  "NOP",
	DM:   "DM",
	BRK:  "BRK",
	IP:   "IP",
	AO:   "AO",
	AYT:  "AYT",
	EC:   "EC",
	EL:   "EL",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

var optionNames = map[Option]string{
	TransmitBinary:    "TRANSMIT_BINARY",
	Echo:              "ECHO",
	SGA:               "SUPPRESS_GO_AHEAD",
	Status:            "STATUS",
	TimingMark:        "TIMING_MARK",
	SendLocation:      "SEND_LOCATION",
	TType:             "TERMINAL_TYPE",
	NAWS:              "WINDOW_SIZE",
	TerminalSpeed:     "TERMINAL_SPEED",
	RemoteFlowControl: "REMOTE_FLOW_CONTROL",
	Linemode:          "LINEMODE",
	XDisplayLocation:  "X_DISPLAY_LOCATION",
	NewEnvironOld:     "NEW_ENVIRONMENT_DEP",
	Authentication:    "AUTHENTICATION",
	Encrypt:           "ENCRYPT",
	NewEnviron:        "NEW_ENVIRONMENT",
	AreYouThere:       "ARE_YOU_THERE",
	Exopl:             "EXTENDED_OPTIONS_LIST",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", byte(c))
}

// Known reports whether c is a command defined by RFC 854.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", byte(o))
}

// Known reports whether o is one of the options this package has a name for.
func (o Option) Known() bool {
	_, ok := optionNames[o]
	return ok
}

// Name is the lowercase, space separated form used for capability
// notifications, e.g. "terminal type" or "window size".
func (o Option) Name() string {
	if name, ok := optionNames[o]; ok {
		return strings.ReplaceAll(strings.ToLower(name), "_", " ")
	}
	return fmt.Sprintf("unknown(%d)", byte(o))
}

// Category groups commands by how the negotiator reacts to them.
type Category int

const (
	CategoryMisc Category = iota
	CategoryDo
	CategoryDont
	CategoryWill
	CategoryWont
	CategorySub
)

func (c Command) Category() Category {
	switch c {
	case DO:
		return CategoryDo
	case DONT:
		return CategoryDont
	case WILL:
		return CategoryWill
	case WONT:
		return CategoryWont
	case SB:
		return CategorySub
	default:
		return CategoryMisc
	}
}

// takesOption reports whether the command is followed by an option byte.
func (c Command) takesOption() bool {
	return c.Category() != CategoryMisc
}
