/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2025 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Command torctl is a thin CLI harness exercising the runtime manager
// end to end, matching the exit codes of spec §6.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nabbar/torctl/runtime"
	"github.com/nabbar/torctl/runtime/action"
	"github.com/nabbar/torctl/runtime/state"
	"github.com/nabbar/torctl/torconfig"
	"github.com/nabbar/torctl/torerr"
)

// Exit codes per spec §6.
const (
	exitClean           = 0
	exitStartFailure    = 1
	exitAuthFailure     = 2
	exitInterrupted     = 3
	exitProtocolDesync  = 4
)

var (
	configFile string
	mgr        *runtime.Manager
)

func main() {
	root := &cobra.Command{
		Use:     "torctl",
		Short:   "Embed and supervise a tor daemon via its control protocol",
		Version: buildVersion,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a torconfig YAML/TOML/JSON file")

	root.AddCommand(startCmd(), stopCmd(), restartCmd(), waitBootstrapCmd())

	if err := root.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(exitStartFailure)
	}
}

func loadConfig() (*torconfig.Config, error) {
	if configFile == "" {
		return nil, torerr.New(torerr.Config, "--config is required", nil)
	}
	l, err := torconfig.NewLoader(configFile)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the supervised tor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				color.Red("config error: %v", err)
				os.Exit(exitStartFailure)
			}

			mgr = runtime.New("", cfg, func(r interface{}) {
				color.Red("uncaught panic in observer: %v", r)
			})

			done := make(chan error, 1)
			mgr.EnqueueAction(action.StartDaemon, func() { done <- nil }, func(e error) { done <- e })
			if err := <-done; err != nil {
				exitFor(err)
			}

			color.Green("tor daemon started")
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the supervised tor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mgr == nil {
				color.Yellow("no runtime manager is active in this process")
				os.Exit(exitClean)
			}
			done := make(chan error, 1)
			mgr.EnqueueAction(action.StopDaemon, func() { done <- nil }, func(e error) { done <- e })
			if err := <-done; err != nil {
				exitFor(err)
			}
			color.Green("tor daemon stopped")
			return nil
		},
	}
}

func restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the supervised tor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mgr == nil {
				color.Red("no runtime manager is active in this process")
				os.Exit(exitStartFailure)
			}
			done := make(chan error, 1)
			mgr.EnqueueAction(action.RestartDaemon, func() { done <- nil }, func(e error) { done <- e })
			if err := <-done; err != nil {
				exitFor(err)
			}
			color.Green("tor daemon restarted")
			return nil
		},
	}
}

func waitBootstrapCmd() *cobra.Command {
	var timeout time.Duration
	c := &cobra.Command{
		Use:   "wait-bootstrap",
		Short: "Block until bootstrap reaches 100% or timeout elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mgr == nil {
				color.Red("no runtime manager is active in this process")
				os.Exit(exitStartFailure)
			}

			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				snap := mgr.State()
				if snap.Daemon == state.On && snap.Bootstrap >= 100 {
					color.Green("bootstrap complete")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}

			fmt.Fprintln(os.Stderr, "timed out waiting for bootstrap")
			os.Exit(exitStartFailure)
			return nil
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "max time to wait")
	return c
}

func exitFor(err error) {
	kind, ok := torerr.KindOf(err)
	if !ok {
		color.Red("%v", err)
		os.Exit(exitStartFailure)
	}

	color.Red("%v", err)
	switch kind {
	case torerr.Authentication:
		os.Exit(exitAuthFailure)
	case torerr.Interrupted:
		os.Exit(exitInterrupted)
	case torerr.Protocol:
		os.Exit(exitProtocolDesync)
	default:
		os.Exit(exitStartFailure)
	}
}
