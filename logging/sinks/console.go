package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/A-ESxARG/receiver/logging"
)

const (
	ansiReset  = "\033[0m"
	ansiGrey   = "\033[90m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags), useColor: cfg.UseColor}
}

// IsTerminal reports whether w is an interactive terminal, which is when the
// console sink should colour severities.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] tick=%d actor=%s severity=%s%s%s",
		event.Type,
		event.Tick,
		formatEntity(event.Actor),
		s.severity(event.Severity),
		formatTargets(event.Targets),
		formatPayload(event.Payload),
	)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func (s *ConsoleSink) severity(sev logging.Severity) string {
	label := sev.String()
	if !s.useColor {
		return label
	}
	switch sev {
	case logging.SeverityDebug:
		return ansiGrey + label + ansiReset
	case logging.SeverityWarn:
		return ansiYellow + label + ansiReset
	case logging.SeverityError:
		return ansiRed + label + ansiReset
	default:
		return label
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return fmt.Sprintf(" targets=%s", strings.Join(parts, ","))
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
