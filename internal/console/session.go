package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/talgya/lifesim/internal/engine"
)

// Session steps a controller from the terminal.
type Session struct {
	Ctrl    *engine.Controller
	Printer *Printer
	In      io.Reader
	Out     io.Writer
}

// RunBatch advances up to years ticks, printing each, and stops early on
// extinction. It returns the number of years advanced.
func (s *Session) RunBatch(ctx context.Context, years int) (int, error) {
	s.Printer.Summary(s.Ctrl.GetSnapshot())
	done := 0
	for done < years {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ok, err := s.step()
		if err != nil {
			return done, err
		}
		if !ok {
			break
		}
		done++
	}
	return done, nil
}

// RunInteractive reads commands line by line: an empty line steps one year,
// "s" prints a summary, "r" resets with the default counts and "q" quits.
func (s *Session) RunInteractive(ctx context.Context) error {
	s.Printer.Summary(s.Ctrl.GetSnapshot())
	scanner := bufio.NewScanner(s.In)
	for {
		fmt.Fprint(s.Out, "[enter] step  [s] summary  [r] reset  [q] quit > ")
		if !scanner.Scan() {
			fmt.Fprintln(s.Out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			if _, err := s.step(); err != nil {
				return err
			}
		case "s":
			s.Printer.Summary(s.Ctrl.GetSnapshot())
		case "r":
			if err := s.Ctrl.ResetDefaults(); err != nil {
				return err
			}
			s.Printer.Summary(s.Ctrl.GetSnapshot())
		case "q", "quit", "exit":
			return nil
		default:
			fmt.Fprintln(s.Out, "unknown command")
		}
	}
}

// step advances one year. It returns false once the run is over.
func (s *Session) step() (bool, error) {
	res, err := s.Ctrl.Step()
	if err != nil {
		return false, err
	}
	if res != nil {
		s.Printer.Year(*res)
	}
	if s.Ctrl.State() == engine.StateCompleted {
		s.Printer.Extinct(s.Ctrl.GetSnapshot())
		return false, nil
	}
	return true, nil
}
