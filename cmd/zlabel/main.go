// Program zlabel configures and drives a Zebra direct-thermal label printer
// through CUPS.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"janouch.name/zlabel/cups"
	"janouch.name/zlabel/job"
	"janouch.name/zlabel/label"
	"janouch.name/zlabel/probe"
	"janouch.name/zlabel/profile"
)

// app holds everything the commands share, built once flags are parsed.
type app struct {
	configPath string
	timeout    time.Duration
	logLevel   string
	vendors    []string

	log     *logrus.Logger
	profile *profile.Profile
	service *job.Service
}

func (a *app) registerFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&a.configPath, "config", "c", profile.DefaultPath,
		"profile file (.json, .yaml or .toml)")
	flags.DurationVar(&a.timeout, "timeout", probe.DefaultTimeout,
		"limit for each invocation of lsusb, lpstat, lp and cancel")
	flags.StringVar(&a.logLevel, "log-level", "warning",
		"one of: debug, info, warning, error")
	flags.StringSliceVar(&a.vendors, "vendor", nil,
		"USB vendor to look for, as NAME, NAME:ID or :ID (default Zebra:0a5f)")
}

// setup loads the profile and wires the printer service. Loading problems
// are reported and the defaults are used instead.
func (a *app) setup() error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.log.SetLevel(level)

	p, err := profile.Load(a.configPath)
	if err != nil {
		a.log.WithError(err).Error("error loading the profile, using defaults")
	}
	if err := p.Validate(); err != nil {
		a.log.WithError(err).Warn("the profile has values out of range")
	}
	for _, w := range p.Warnings() {
		a.log.Warn(w)
	}
	a.profile = p

	spooler := cups.NewClient(a.timeout)
	pr := probe.New(probe.NewLSUSB(a.timeout), spooler, a.log)
	if len(a.vendors) > 0 {
		pr.Vendors = nil
		for _, s := range a.vendors {
			v, err := probe.ParseVendor(s)
			if err != nil {
				return err
			}
			pr.Vendors = append(pr.Vendors, v)
		}
	}

	a.service = &job.Service{
		Probe:      pr,
		Builder:    label.NewBuilder(),
		Dispatcher: spooler,
		Canceller:  spooler,
		Log:        a.log,
	}
	return nil
}

func (a *app) save(p *profile.Profile) error {
	if err := profile.Save(a.configPath, p); err != nil {
		return err
	}
	a.log.WithField("path", a.configPath).Info("profile saved")
	return nil
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "zlabel",
		Short: "Configure and print labels on a Zebra direct-thermal printer",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMenu(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.registerFlags(root.PersistentFlags())

	root.AddCommand(
		newPrintCommand(a),
		newStatusCommand(a),
		newZPLCommand(a),
		newClearQueueCommand(a),
		newConfigCommand(a),
	)
	return root
}

func main() {
	a := &app{log: logrus.New()}
	a.log.SetOutput(os.Stderr)
	a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand(a).ExecuteContext(ctx)
	if errors.Is(err, errAborted) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
