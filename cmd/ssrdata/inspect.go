package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/ssr"
)

// payloadSummary describes a page payload.
type payloadSummary struct {
	Pathname    string         `json:"pathname,omitempty"`
	Props       []string       `json:"props"`
	Records     int            `json:"records"`
	RootQueries []string       `json:"rootQueries"`
	Types       map[string]int `json:"types"`
}

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <payload.json>",
		Short: "Validate and summarize a page payload",
		Long: `Validate and summarize a page payload, as embedded in a rendered
page or stored in the snapshot archive. Use "-" to read stdin.

Examples:
  ssrdata inspect snapshot.json
  aws s3 cp s3://snapshots/Posts/2026/10/19/r1.json - | ssrdata inspect -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			summary, err := summarize(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				b, err := pretty.Marshal(summary)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}
			printSummary(out, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

// summarize decodes a payload and checks its snapshot the way a mount
// would.
func summarize(data []byte) (payloadSummary, error) {
	props, err := ssr.DecodePayload(data)
	if err != nil {
		return payloadSummary{}, err
	}
	state, err := ssr.ServerStateFrom(props)
	if err != nil {
		return payloadSummary{}, err
	}
	snap := state.Snapshot()
	if err := snap.Validate(); err != nil {
		return payloadSummary{}, err
	}

	s := payloadSummary{
		Pathname:    ssr.URLFrom(props).Pathname,
		Props:       make([]string, 0, len(props)),
		Records:     len(snap),
		RootQueries: []string{},
		Types:       map[string]int{},
	}
	for k := range props {
		s.Props = append(s.Props, k)
	}
	sort.Strings(s.Props)
	for id := range snap {
		if id == query.RootQuery {
			continue
		}
		typ, _, _ := strings.Cut(id, ":")
		s.Types[typ]++
	}
	for key := range snap[query.RootQuery] {
		s.RootQueries = append(s.RootQueries, key)
	}
	sort.Strings(s.RootQueries)
	return s, nil
}

func printSummary(w io.Writer, s payloadSummary) {
	success(w, "Payload is valid")
	if s.Pathname != "" {
		info(w, "Path:     %s", s.Pathname)
	}
	info(w, "Props:    %s", strings.Join(s.Props, ", "))
	info(w, "Records:  %d", s.Records)
	if len(s.RootQueries) == 0 {
		warn(w, "No root queries: the page will mount cold")
		return
	}
	info(w, "Queries:")
	for _, q := range s.RootQueries {
		info(w, "  %s", q)
	}
	types := make([]string, 0, len(s.Types))
	for t := range s.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	info(w, "Types:")
	for _, t := range types {
		info(w, "  %-20s %d", t, s.Types[t])
	}
}

