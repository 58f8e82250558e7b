package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/sandia-emesh/equipmesh/internal/wire"
)

// verbs is the fixed part of the tab-completion vocabulary: the closed
// command grammar. complete adds the currently-known equipment IDs after
// "request information from " on each completion request.
var verbs = []string{
	"list equipment",
	"request information from ",
	"close connection",
	"quit",
}

// Shell drives a Session interactively over a liner-backed line editor:
// it multiplexes incoming broker frames against typed commands so neither
// starves the other, matching the CONNECTING/REGISTERING/READY client
// session's READY-state loop.
type Shell struct {
	session *Session
	input   *liner.State
	out     io.Writer
}

// NewShell wires a liner.State around session, writing prompts and
// responses to out.
func NewShell(session *Session, out io.Writer) *Shell {
	input := liner.NewLiner()
	input.SetCtrlCAborts(true)
	input.SetTabCompletionStyle(liner.TabPrints)

	sh := &Shell{session: session, input: input, out: out}
	input.SetCompleter(sh.complete)

	return sh
}

// Close releases the underlying terminal state.
func (sh *Shell) Close() error {
	return sh.input.Close()
}

func (sh *Shell) complete(line string) []string {
	var matches []string
	for _, v := range verbs {
		if strings.HasPrefix(v, line) {
			matches = append(matches, v)
		}
	}
	if strings.HasPrefix(line, "request information from ") {
		for _, id := range sh.session.Directory() {
			matches = append(matches, line+string(id))
		}
	}
	return matches
}

// Run multiplexes the session's incoming frames against interactively
// typed commands until the user quits, the connection closes, or the line
// editor reports EOF. It blocks until one of those terminal conditions.
func (sh *Shell) Run() error {
	fmt.Fprintf(sh.out, "New ID: %s\n", sh.session.EquipmentID())

	frames := make(chan wire.Message)
	frameErrs := make(chan error, 1)
	go func() {
		for {
			m, err := sh.session.conn.ReadMessage()
			if err != nil {
				frameErrs <- err
				return
			}
			frames <- m
		}
	}()

	lines := make(chan string)
	lineErrs := make(chan error, 1)
	go func() {
		for {
			line, err := sh.input.Prompt(sh.prompt())
			if err == liner.ErrPromptAborted {
				continue
			}
			if err != nil {
				lineErrs <- err
				return
			}
			sh.input.AppendHistory(line)
			lines <- line
		}
	}()

	for {
		select {
		case m := <-frames:
			sh.session.HandleIncoming(m)
			sh.printIncoming(m)

		case err := <-frameErrs:
			return err

		case line := <-lines:
			quit, err := sh.handleLine(line)
			if err != nil {
				fmt.Fprintln(sh.out, err)
			}
			if quit {
				return nil
			}

		case err := <-lineErrs:
			if err == io.EOF {
				return nil
			}
			return err

		case <-time.After(readLoopInterval):
			// Neither source had anything ready; loop so a slow typist
			// never blocks delivery of server-pushed frames, and vice
			// versa.
		}
	}
}

func (sh *Shell) prompt() string {
	id := sh.session.EquipmentID()
	if id == "" {
		return "equipmesh> "
	}
	return fmt.Sprintf("equipmesh[%s]> ", id)
}

func (sh *Shell) handleLine(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return false, fmt.Errorf("unrecognized command: %q", line)
	}

	switch cmd.Kind {
	case CmdListEquipment:
		sh.printDirectory()
		return false, nil

	case CmdRequestInformation:
		return false, sh.session.RequestInformation(cmd.DestID)

	case CmdCloseConnection:
		return true, sh.session.Close()

	case CmdQuit:
		sh.session.Close()
		return true, nil
	}

	return false, nil
}

func (sh *Shell) printDirectory() {
	ids := sh.session.Directory()
	if len(ids) == 0 {
		fmt.Fprintln(sh.out, "(no other equipment registered)")
		return
	}
	for _, id := range ids {
		fmt.Fprintln(sh.out, id)
	}
}

func (sh *Shell) printIncoming(m wire.Message) {
	switch m.Kind() {
	case wire.ReqInf:
		fmt.Fprintln(sh.out, "requested information")
	case wire.ResInf:
		origin, _ := m.OriginID()
		measurement, _ := m.Payload()
		fmt.Fprintf(sh.out, "Value from %s: %s\n", origin, measurement)
	case wire.ResAdd:
		id, _ := m.Payload()
		fmt.Fprintf(sh.out, "Equipment %s added\n", id)
	case wire.ReqRem:
		origin, _ := m.OriginID()
		fmt.Fprintf(sh.out, "Equipment %s removed\n", origin)
	case wire.ErrMsg:
		if code, ok := m.Payload(); ok {
			fmt.Fprintln(sh.out, wire.ErrMsg.Describe(code))
		}
	case wire.OkMsg:
		if code, ok := m.Payload(); ok {
			fmt.Fprintln(sh.out, wire.OkMsg.Describe(code))
		}
	}
}
