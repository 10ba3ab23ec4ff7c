package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"catalog/browser/internal/browser"
	"catalog/browser/internal/domain/event"
	"catalog/browser/internal/urlstate"

	log "github.com/sirupsen/logrus"
)

// Service runs one interactive browsing session: commands are read line by
// line and every settled view is written as a JSON document.
type Service struct {
	browser *browser.Browser
	address *urlstate.Adapter
	session string

	outMu sync.Mutex
	out   *json.Encoder
}

func NewService(b *browser.Browser, address *urlstate.Adapter, session string, out io.Writer) *Service {
	return &Service{
		browser: b,
		address: address,
		session: session,
		out:     json.NewEncoder(out),
	}
}

type addressOutput struct {
	Session string `json:"session"`
	Address string `json:"address"`
}

type errorOutput struct {
	Error string `json:"error,omitempty"`
	Usage string `json:"usage,omitempty"`
}

// Run shows the persisted view, then executes commands from in until quit,
// end of input or ctx is done.
func (s *Service) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Infof("🚀 Session %s started", s.session)
	defer func() {
		s.browser.Close()
		log.Infof("🛑 Session %s finished", s.session)
	}()

	if err := s.write(s.browser.Load(ctx)); err != nil {
		return err
	}

	lines, scanErr := readLines(ctx, in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("failed to read commands: %w", err)
				}
				return nil
			}

			err := s.Execute(ctx, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// readLines scans in on its own goroutine so a blocked read never holds up
// shutdown. scanErr receives exactly one value before lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

// Execute runs a single command line. Only output failures and ErrQuit are
// returned; bad input is reported to the session itself.
func (s *Service) Execute(ctx context.Context, line string) error {
	e, err := ParseCommand(line)
	switch {
	case err == nil:
		return s.write(s.browser.Dispatch(ctx, e))
	case errors.Is(err, ErrQuit):
		return err
	case errors.Is(err, errEmptyCommand):
		return nil
	case errors.Is(err, errPrintHelp):
		return s.write(errorOutput{Usage: usage})
	case errors.Is(err, errPrintAddress):
		address, err := s.address.Address(ctx)
		if err != nil {
			return s.write(errorOutput{Error: err.Error()})
		}
		return s.write(addressOutput{Session: s.session, Address: address})
	default:
		return s.write(errorOutput{Error: err.Error(), Usage: usage})
	}
}

// HandleChange refreshes the view after a change made by another session.
// Changes made by this session were already applied by the mutation itself.
func (s *Service) HandleChange(ctx context.Context, changed *event.CategoryChanged) error {
	if changed.Origin == s.session {
		return nil
	}

	log.Infof("🔄 Category %s was %s elsewhere, refreshing", changed.CategoryID, changed.Action)
	return s.write(s.browser.Dispatch(ctx, browser.Invalidated{}))
}

func (s *Service) write(v any) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if err := s.out.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
