package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) pluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the available readers and stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(tw, "READERS\t\t")
			for _, p := range a.registry.ListReaders() {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Name(), p.Description(), scopeNote(p.RequiredScopes()))
			}
			fmt.Fprintln(tw, "\t\t")
			fmt.Fprintln(tw, "STORES\t\t")
			for _, p := range a.registry.ListStores() {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Name(), p.Description(), scopeNote(p.RequiredScopes()))
			}
			return tw.Flush()
		},
	}
}

func scopeNote(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	short := make([]string, len(scopes))
	for i, s := range scopes {
		short[i] = s[strings.LastIndex(s, "/")+1:]
	}
	return "(oauth: " + strings.Join(short, ", ") + ")"
}
