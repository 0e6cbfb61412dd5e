package telnet

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// optionParser decodes the frame at the head of the buffer. It must not
// consume anything unless the whole frame is present, so that a call that
// returns errMoreData can simply be repeated once more bytes arrive.
type optionParser func(b *Buffer, ev *Event) error

var optionParsers = map[Option]optionParser{
	TransmitBinary:    parseNoArgs,
	Echo:              parseNoArgs,
	SGA:               parseNoArgs,
	Status:            parseNoArgs,
	SendLocation:      parseNoArgs,
	TerminalSpeed:     parseNoArgs,
	RemoteFlowControl: parseNoArgs,
	Linemode:          parseNoArgs,
	XDisplayLocation:  parseNoArgs,
	Authentication:    parseNoArgs,
	AreYouThere:       parseNoArgs,
	TType:             parseTerminalType,
	NAWS:              parseWindowSize,
	NewEnvironOld:     parseNewEnviron,
	NewEnviron:        parseNewEnviron,
}

const (
	headerLen  = 3 // IAC SB <option>
	trailerLen = 2 // IAC SE
	nawsLen    = 9

	// maxSubnegotiation bounds an SB frame still waiting for its IAC SE.
	maxSubnegotiation = 4096
)

func parseNoArgs(b *Buffer, ev *Event) error {
	if ev.Sub() {
		return parseOpaqueSub(b, ev)
	}
	ev.Raw = b.Next(3)
	return nil
}

func parseUnhandled(b *Buffer, ev *Event) error {
	ev.Unhandled = true
	return parseNoArgs(b, ev)
}

// parseOpaqueSub consumes an SB frame whose payload has no grammar here.
func parseOpaqueSub(b *Buffer, ev *Event) error {
	end, err := findTrailer(b, headerLen)
	if err != nil {
		return err
	}
	ev.Raw = unescape(b.Next(end)[headerLen:])
	b.Skip(trailerLen)
	return nil
}

// IAC SB NAWS <width hi> <width lo> <height hi> <height lo> IAC SE
//
// A 9 byte frame is taken literally, so a size byte of 255 may appear
// unescaped. Anything longer must be an escaped payload.
func parseWindowSize(b *Buffer, ev *Event) error {
	if !ev.Sub() {
		return parseNoArgs(b, ev)
	}
	if b.Len() < nawsLen {
		return errMoreData
	}
	if err := checkHeader(b, NAWS); err != nil {
		return err
	}

	end := nawsLen - trailerLen
	var size []byte
	if b.At(end) == iac && Command(b.At(end+1)) == SE {
		size = b.Peek(nawsLen)[headerLen:end]
	} else {
		var err error
		if end, err = findTrailer(b, headerLen); err != nil {
			return err
		}
		size = unescape(b.Peek(end)[headerLen:end])
	}
	if len(size) != 4 {
		return malformed("window size payload is %d bytes", len(size))
	}

	ev.Width = int(binary.BigEndian.Uint16(size[0:2]))
	ev.Height = int(binary.BigEndian.Uint16(size[2:4]))
	ev.Raw = b.Next(end + trailerLen)
	return nil
}

// IAC SB TTYPE IS <terminal type> IAC SE
func parseTerminalType(b *Buffer, ev *Event) error {
	if !ev.Sub() {
		return parseNoArgs(b, ev)
	}
	// 4 byte header + payload + IAC SE
	if b.Len() < headerLen+1+trailerLen {
		return errMoreData
	}
	end, err := findTrailer(b, headerLen+1)
	if err != nil {
		return err
	}
	if err := checkHeader(b, TType); err != nil {
		return err
	}
	if tag := b.At(headerLen); tag != IS {
		return malformed("terminal type tag is %d, expected IS", tag)
	}

	b.Skip(headerLen + 1)
	payload := unescape(b.Next(end - headerLen - 1))
	b.Skip(trailerLen)

	// Some clients (NetRunner, for one) pad the name with NULs.
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	ttype, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		return malformed("terminal type: %v", err)
	}
	ev.TermType = string(ttype)
	return nil
}

// IAC SB NEW-ENVIRON IS|INFO [VAR|USERVAR name [VALUE value]]... IAC SE
//
// Many clients send an empty list: IAC SB NEW-ENVIRON IS IAC SE
func parseNewEnviron(b *Buffer, ev *Event) error {
	if !ev.Sub() {
		return parseNoArgs(b, ev)
	}
	if b.Len() < headerLen+1+trailerLen {
		return errMoreData
	}
	end, err := findTrailer(b, headerLen+1)
	if err != nil {
		return err
	}
	if err := checkHeader(b, ev.Option); err != nil {
		return err
	}
	switch tag := b.At(headerLen); tag {
	case IS, INFO:
		ev.Exchange = Exchange(tag)
	default:
		return malformed("environment tag is %d, expected IS or INFO", tag)
	}

	b.Skip(headerLen + 1)
	payload := unescape(b.Next(end - headerLen - 1))
	b.Skip(trailerLen)

	var name string
	for _, tok := range splitEnv(payload) {
		if len(tok.text) == 0 {
			continue
		}
		switch tok.tag {
		case VAR, USERVAR:
			name = string(tok.text)
		case VALUE:
			if name == "" {
				continue
			}
			ev.setEnv(name, string(tok.text))
		}
	}
	return nil
}

type envToken struct {
	tag  byte
	text []byte
}

// splitEnv breaks a NEW-ENVIRON payload into tagged tokens. ESC makes the
// byte after it literal. Bytes before the first tag are dropped.
func splitEnv(p []byte) []envToken {
	var tokens []envToken
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case VAR, VALUE, USERVAR:
			tokens = append(tokens, envToken{tag: c})
		case ESC:
			i++
			if i < len(p) && len(tokens) > 0 {
				tokens[len(tokens)-1].text = append(tokens[len(tokens)-1].text, p[i])
			}
		default:
			if len(tokens) > 0 {
				tokens[len(tokens)-1].text = append(tokens[len(tokens)-1].text, c)
			}
		}
	}
	return tokens
}

// findTrailer returns the offset of the IAC SE ending the SB frame at the
// head of b. A frame that outgrows maxSubnegotiation without one is malformed.
func findTrailer(b *Buffer, from int) (int, error) {
	if end := b.IndexTrailer(from); end >= 0 {
		return end, nil
	}
	if b.Len() > maxSubnegotiation {
		return -1, malformed("sub-negotiation exceeds %d bytes without IAC SE", maxSubnegotiation)
	}
	return -1, errMoreData
}

func checkHeader(b *Buffer, opt Option) error {
	if b.At(0) != iac || Command(b.At(1)) != SB || Option(b.At(2)) != opt {
		return malformed("expected IAC SB %s header, got % x", opt, b.Peek(headerLen))
	}
	return nil
}

func unescape(p []byte) []byte {
	if bytes.IndexByte(p, iac) < 0 {
		return p
	}
	return bytes.ReplaceAll(p, []byte{iac, iac}, []byte{iac})
}
