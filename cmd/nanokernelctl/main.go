// Command nanokernelctl drives a page allocator and buffer cache under
// synthetic concurrent load and reports the resulting steal/eviction
// counts. It exists to exercise kpage and kbuf outside of a test binary.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nanokernelctl",
		Short: "Drive the page allocator and buffer cache under synthetic load",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
