package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/bhandras/delight/watch/pkg/logger"
	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	l := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, l)
	logger.SetLogger(l)
	log.SetOutput(pslog.LogLogger(l).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("delight-watch command failed")
		return 1
	}
	return 0
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "delight-watch",
		Short:         "Headless client for the delight bridge",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default $DELIGHT_WATCH_CONFIG or user config dir)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newResolveCmd(flags))
	root.AddCommand(newHostsCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}
