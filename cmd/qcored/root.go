// Command qcored runs a qcore endpoint from the command line: serve
// accepts connections on a UDP socket, dial starts one against a peer.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string
)

// RootCmd is the main command for the qcored binary.
var RootCmd = &cobra.Command{
	Use:   "qcored",
	Short: "qcored runs a QUIC endpoint",
	Long:  "qcored runs a QUIC endpoint",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", logLevel, err)
			os.Exit(1)
		}
		logrus.SetLevel(lvl)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(DialCmd)
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
