// Package cli turns the bridge's command-line tokens into exactly one operating
// mode. Parsing is pure; acting on the mode is the caller's job.
package cli

import "strings"

// Mode is the single terminal action selected for an invocation.
type Mode int

const (
	// ModeHelp is also the fallback for every unrecognised shape.
	ModeHelp Mode = iota
	ModeRunService
	ModeInstall
	ModeUninstall
	ModeConsole
	ModeLoggingEnable
	ModeLoggingDisable
	ModeLoggingState
	ModeConfigSet
	ModeConfigDefault
	ModeConfigState
)

var modeNames = map[Mode]string{
	ModeHelp:           "help",
	ModeRunService:     "run-service",
	ModeInstall:        "install",
	ModeUninstall:      "uninstall",
	ModeConsole:        "console",
	ModeLoggingEnable:  "logging-enable",
	ModeLoggingDisable: "logging-disable",
	ModeLoggingState:   "logging-state",
	ModeConfigSet:      "config-set",
	ModeConfigDefault:  "config-default",
	ModeConfigState:    "config-state",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Invocation is the parsed command line.
type Invocation struct {
	Mode Mode
	// Path is set for ModeLoggingEnable and ModeConfigSet.
	Path string
}

// Parse selects the mode for args, which excludes the program name.
//
// No tokens, or a first token that is not a flag, runs the service. Flags start
// with '-' or '/', and flag names and verbs compare case-insensitively. Every
// other shape, including a known flag family with a missing or unknown verb,
// selects help.
func Parse(args []string) Invocation {
	if len(args) == 0 || !isFlag(args[0]) {
		return Invocation{Mode: ModeRunService}
	}

	name := strings.ToLower(args[0][1:])
	rest := args[1:]

	switch name {
	case "install":
		return Invocation{Mode: ModeInstall}
	case "uninstall":
		return Invocation{Mode: ModeUninstall}
	case "console":
		return Invocation{Mode: ModeConsole}
	case "help":
		return Invocation{Mode: ModeHelp}
	case "logging":
		return parseVerb(rest, "enable", ModeLoggingEnable, "disable", ModeLoggingDisable, ModeLoggingState)
	case "config":
		return parseVerb(rest, "set", ModeConfigSet, "default", ModeConfigDefault, ModeConfigState)
	default:
		return Invocation{Mode: ModeHelp}
	}
}

// parseVerb handles the "<family> <set-verb> <path> | <reset-verb> | state"
// shape shared by -logging and -config.
func parseVerb(rest []string, setVerb string, setMode Mode, resetVerb string, resetMode Mode, stateMode Mode) Invocation {
	if len(rest) == 0 {
		return Invocation{Mode: ModeHelp}
	}

	switch strings.ToLower(rest[0]) {
	case setVerb:
		if len(rest) < 2 || rest[1] == "" {
			return Invocation{Mode: ModeHelp}
		}
		return Invocation{Mode: setMode, Path: rest[1]}
	case resetVerb:
		return Invocation{Mode: resetMode}
	case "state":
		return Invocation{Mode: stateMode}
	default:
		return Invocation{Mode: ModeHelp}
	}
}

func isFlag(token string) bool {
	return len(token) > 0 && (token[0] == '-' || token[0] == '/')
}
