package telnet

import "log/slog"

// Exchange records whether a NEW-ENVIRON frame was the initial declaration
// (IS) or an unsolicited update (INFO).
type Exchange byte

const (
	ExchangeIS   Exchange = Exchange(IS)
	ExchangeInfo Exchange = Exchange(INFO)
)

func (e Exchange) String() string {
	switch e {
	case ExchangeIS:
		return "IS"
	case ExchangeInfo:
		return "INFO"
	default:
		return "?"
	}
}

// EnvVar is one variable from a NEW-ENVIRON exchange.
type EnvVar struct {
	Name  string
	Value string
}

// Event is a single classified frame. Which payload fields are set depends
// on the command and option.
type Event struct {
	Command   Command
	Option    Option
	HasOption bool

	// Raw holds the consumed frame bytes for options without a decoded payload.
	Raw []byte

	// Unhandled is set when no grammar exists for the option.
	Unhandled bool

	TermType string
	Width    int
	Height   int

	Exchange Exchange
	Env      []EnvVar
}

// Sub reports whether the event came from an SB ... SE frame.
func (e *Event) Sub() bool {
	return e.Command == SB
}

func (e *Event) setEnv(name, value string) {
	for i := range e.Env {
		if e.Env[i].Name == name {
			e.Env[i].Value = value
			return
		}
	}
	e.Env = append(e.Env, EnvVar{Name: name, Value: value})
}

// LogValue renders only the fields that are populated.
func (e *Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("cmd", e.Command.String())}
	if e.HasOption {
		attrs = append(attrs, slog.String("opt", e.Option.String()))
	}
	switch {
	case e.TermType != "":
		attrs = append(attrs, slog.String("ttype", e.TermType))
	case e.Width != 0 || e.Height != 0:
		attrs = append(attrs, slog.Int("width", e.Width), slog.Int("height", e.Height))
	case len(e.Env) > 0:
		attrs = append(attrs, slog.String("exchange", e.Exchange.String()), slog.Int("vars", len(e.Env)))
	case len(e.Raw) > 0:
		attrs = append(attrs, slog.Int("len", len(e.Raw)))
	}
	return slog.GroupValue(attrs...)
}
