package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bhandras/delight/watch/internal/config"
	"github.com/bhandras/delight/watch/internal/websocket"
)

func newHostsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List configured bridge host presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range cfg.Presets {
				mark := " "
				if p.Host == cfg.Host {
					mark = "*"
				}
				url := websocket.ResolveURL(p.Host, cfg.Port, cfg.TailnetSuffix)
				if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, p.Label, p.Host, url); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}
}

func newResolveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <host-or-preset>",
		Short: "Print the websocket URL a host resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			host, _ := cfg.LookupHost(args[0])
			if host == "" {
				return fmt.Errorf("host is empty")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), websocket.ResolveURL(host, cfg.Port, cfg.TailnetSuffix))
			return err
		},
	}
}
