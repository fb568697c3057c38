// Package job gates label printing on the printer's state.
package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"janouch.name/zlabel/label"
	"janouch.name/zlabel/probe"
	"janouch.name/zlabel/profile"
)

// ErrHardwareOffline means that no printer could be seen on the USB bus.
var ErrHardwareOffline = errors.New("printer not detected on USB")

var errNoQueue = errors.New("no printer name configured")

// Dispatcher hands a finished command stream over to a print queue.
type Dispatcher interface {
	Submit(ctx context.Context, stream, queue string) error
}

// QueueCanceller drops all pending jobs from a print queue.
type QueueCanceller interface {
	Cancel(ctx context.Context, queue string) error
}

// Result describes a print attempt, successful or not.
type Result struct {
	State  probe.State
	Stream string // empty if nothing has been generated
}

// Service prints labels described by a profile.
type Service struct {
	Probe      *probe.Probe
	Builder    *label.Builder
	Dispatcher Dispatcher
	Canceller  QueueCanceller
	Log        logrus.FieldLogger
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// build uses the default print head resolution unless told otherwise.
func (s *Service) build(p *profile.Profile, testPattern bool) string {
	if s.Builder == nil {
		return label.Generate(p, testPattern)
	}
	return s.Builder.Build(p, testPattern)
}

// Print checks the printer, generates a label and submits it.
// Nothing is generated, let alone submitted, unless the printer is online.
// An unverified spooler queue is only reported, the spooler gets to decide.
func (s *Service) Print(ctx context.Context, p *profile.Profile,
	testPattern bool) (Result, error) {
	log := s.logger().WithField("printer", p.PrinterName)

	var result Result
	result.State = s.Probe.Refresh(ctx, p.PrinterName)
	if !result.State.USBOnline {
		return result, ErrHardwareOffline
	}
	if p.PrinterName == "" {
		return result, errNoQueue
	}
	if !result.State.PrinterVerified {
		log.Warn("the spooler doesn't list this printer, trying anyway")
	}

	result.Stream = s.build(p, testPattern)
	log.WithField("test_pattern", testPattern).Info("sending job")
	if err := s.Dispatcher.Submit(ctx, result.Stream, p.PrinterName); err != nil {
		return result, fmt.Errorf("submitting to %q: %w", p.PrinterName, err)
	}
	return result, nil
}

// ClearQueue cancels every job pending on the profile's printer.
func (s *Service) ClearQueue(ctx context.Context, p *profile.Profile) error {
	if p.PrinterName == "" {
		return errNoQueue
	}
	s.logger().WithField("printer", p.PrinterName).Info("clearing print queue")
	if err := s.Canceller.Cancel(ctx, p.PrinterName); err != nil {
		return fmt.Errorf("clearing %q: %w", p.PrinterName, err)
	}
	return nil
}
