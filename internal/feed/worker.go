package feed

import (
	"strings"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

// Processor is the part of the ingestion processor workers depend on.
type Processor interface {
	Process(raw, streamID string)
	ReportTransportError(streamID string, err error)
}

// Worker produces raw messages and hands them to a Processor until the stop
// signal is set.
type Worker interface {
	Run(stop *Signal, requests *atomic.Int64)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(stop *Signal, requests *atomic.Int64)

func (f WorkerFunc) Run(stop *Signal, requests *atomic.Int64) {
	f(stop, requests)
}

// Mode selects which workers a run spawns.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeReal      Mode = "real"
	ModePipe      Mode = "pipe"
	ModeSocket    Mode = "socket"
	ModeReplay    Mode = "replay"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeSimulated, ModeReal, ModePipe, ModeSocket, ModeReplay}
}

// DefaultStreamID is the stream id used for a mode when none is configured.
func (m Mode) DefaultStreamID() string {
	switch m {
	case ModeSimulated:
		return "SIM"
	case ModeReal:
		return "REAL"
	case ModePipe:
		return "PIPE"
	case ModeSocket:
		return "WS"
	case ModeReplay:
		return "REPLAY"
	default:
		return ""
	}
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Wrapf(exception.ErrUnsupportedDataMode, "mode %q", s)
}
