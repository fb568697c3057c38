package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"janouch.name/zlabel/cups"
	"janouch.name/zlabel/job"
	"janouch.name/zlabel/menu"
	"janouch.name/zlabel/probe"
	"janouch.name/zlabel/profile"
	"janouch.name/zlabel/zpl"
)

var errAborted = menu.ErrAborted

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) runMenu(ctx context.Context) error {
	interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	m := &menu.Menu{
		Profile:     a.profile,
		Service:     a.service,
		In:          line,
		Out:         colorable.NewColorableStdout(),
		Log:         a.log,
		Save:        a.save,
		ClearScreen: interactive,
		Bold:        interactive,
	}
	return m.Run(ctx)
}

// explain turns a print failure into a message the user can act upon.
func explain(err error) string {
	var spoolerErr *cups.SpoolerError
	switch {
	case errors.Is(err, job.ErrHardwareOffline):
		return "printer not detected on USB, please check the cable"
	case errors.Is(err, cups.ErrSubmissionToolMissing):
		return "the lp command was not found, install CUPS"
	case errors.As(err, &spoolerErr):
		return "the print system returned an error: " + spoolerErr.Diagnostic
	default:
		return err.Error()
	}
}

func newPrintCommand(a *app) *cobra.Command {
	var testPattern bool
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print a label, or a test frame for checking margins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.service.Print(cmd.Context(), a.profile, testPattern)
			if err != nil {
				return errors.New(explain(err))
			}
			if !result.State.PrinterVerified {
				fmt.Fprintf(cmd.ErrOrStderr(),
					"note: CUPS doesn't list %q\n", a.profile.PrinterName)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Print job submitted successfully.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&testPattern, "test", "t", false,
		"print a frame along the label edges instead of the text")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the printer is connected and known to CUPS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state := a.service.Probe.Refresh(cmd.Context(), a.profile.PrinterName)
			fmt.Fprintf(cmd.OutOrStdout(), "printer: %s\n", a.profile.PrinterName)
			state.Dump(cmd.OutOrStdout())
			dumpTools(cmd.OutOrStdout())
			if !state.USBOnline {
				return job.ErrHardwareOffline
			}
			return nil
		},
	}
}

// statusTools are the utilities that printing relies on.
var statusTools = []string{"lsusb", "lpstat", "lp", "cancel"}

func dumpTools(w io.Writer) {
	var missing []string
	for _, name := range statusTools {
		if !(probe.Tool{Name: name}).Available() {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		fmt.Fprintln(w, "tools: all installed")
	} else {
		fmt.Fprintln(w, "tools: missing", strings.Join(missing, ", "))
	}
}

func newZPLCommand(a *app) *cobra.Command {
	var testPattern, numbered bool
	cmd := &cobra.Command{
		Use:   "zpl",
		Short: "Print the ZPL that would be sent, without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream := a.service.Builder.Build(a.profile, testPattern)
			return writeStream(cmd.OutOrStdout(), stream, numbered)
		},
	}
	cmd.Flags().BoolVarP(&testPattern, "test", "t", false,
		"generate the test frame")
	cmd.Flags().BoolVarP(&numbered, "numbered", "n", false,
		"number the lines")
	return cmd
}

func writeStream(w io.Writer, stream string, numbered bool) error {
	if !numbered {
		_, err := fmt.Fprintln(w, stream)
		return err
	}

	var s zpl.Stream
	for i, line := range strings.Split(stream, "\n") {
		s.Add(fmt.Sprintf("%2d) %s", i+1, line))
	}
	_, err := fmt.Fprintln(w, s.String())
	return err
}

func newClearQueueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-queue",
		Short: "Cancel all jobs pending on the printer's queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.ClearQueue(cmd.Context(), a.profile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared.")
			return nil
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show all profile keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range profile.Keys {
				value, err := a.profile.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", key, value)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a single key and save the profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := a.profile.Set(args[0], args[1])
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			if err != nil {
				return err
			}
			return a.save(a.profile)
		},
	})
	return cmd
}
