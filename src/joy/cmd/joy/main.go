package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"equanimity/src/joy"
	"equanimity/src/lib/console"
	"equanimity/src/lib/fatal"
	"equanimity/src/lib/semihosting"
	"equanimity/src/lib/trust"
	"equanimity/src/lib/upbeat"
	"equanimity/src/lib/upcell"
)

type bootFlags struct {
	console  string
	logLevel string
	ticks    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		trust.Fatalf(2, "%v", err)
	}
}

func newRootCmd() *cobra.Command {
	var f bootFlags
	root := &cobra.Command{
		Use:           "joy",
		Short:         "hosted boot of the joy uniprocessor kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.console, "console", "", "stdout, stderr or a serial device (overrides JOY_CONSOLE)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "none, error, warn, info or debug (overrides JOY_LOG_LEVEL)")
	root.PersistentFlags().IntVar(&f.ticks, "ticks", -1, "timer ticks to run before halting (overrides JOY_TICKS)")

	root.AddCommand(&cobra.Command{
		Use:   "boot",
		Short: "boot the kernel, run the scheduler for a while and halt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, r, err := bringUp(cmd, f)
			if err != nil {
				return err
			}
			defer r.Recover()
			if _, err := joy.KernelMain(p, r); err != nil {
				r.Panic(err.Error())
			}
			trust.Infof("halting")
			semihosting.Exit(0)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "panic <cause>",
		Short: "send a cause straight down the fatal path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := bringUp(cmd, f); err != nil {
				return err
			}
			fatal.Panic(args[0])
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "reenter",
		Short: "take the same cell twice, to see what the kernel says about it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := bringUp(cmd, f); err != nil {
				return err
			}
			cell := upcell.New(0)
			h := cell.ExclusiveAccess()
			defer h.Release()
			cell.ExclusiveAccess()
			return nil
		},
	})
	return root
}

// bringUp does what the board's early boot does before KernelMain: read
// the boot params, get a console, point logging and the fatal path at it.
func bringUp(cmd *cobra.Command, f bootFlags) (*upbeat.BootParams, *fatal.Reporter, error) {
	p, err := upbeat.LoadBootParams()
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("console") {
		p.Console = f.console
	}
	if cmd.Flags().Changed("log-level") {
		p.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("ticks") {
		p.Ticks = f.ticks
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	mask, err := trust.ParseLevel(p.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	c, closeConsole, err := console.Open(p.Console)
	if err != nil {
		return nil, nil, fmt.Errorf("no console: %w", err)
	}
	semihosting.OnShutdown(func() { _ = closeConsole() })
	trust.SetOutput(c)
	trust.SetLevel(mask)

	r := fatal.NewReporter(c, semihosting.Shutdown)
	fatal.Install(r)
	trust.Debugf("console %s, level %s", p.Console, trust.LevelToString())
	return p, r, nil
}
