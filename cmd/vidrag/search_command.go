package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/semantic"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		filters []string
		topK    int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the vector index with optional restrict filters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			log := ctx.log(cmd)

			query := strings.Join(args, " ")
			vecs, err := ctx.embedder(cfg).Embed(cmd.Context(), []string{query})
			if err != nil {
				return err
			}
			if len(vecs) != 1 {
				return fmt.Errorf("search: embedder returned %d vectors", len(vecs))
			}

			vs, err := ctx.vectorStore(cmd.Context(), cfg, false, log)
			if err != nil {
				return err
			}
			defer vs.Close()

			results, err := vs.SearchFiltered(cmd.Context(), vecs[0], topK, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Restrict filter namespace=value[,value...] (repeatable)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results")
	return cmd
}

// parseFilters turns "ns=a,b" flags into allow-list filters. Repeating a
// namespace adds to its allow list.
func parseFilters(raw []string) ([]semantic.Filter, error) {
	var out []semantic.Filter
	pos := make(map[string]int)
	for _, f := range raw {
		ns, vals, ok := strings.Cut(f, "=")
		ns = strings.TrimSpace(ns)
		if !ok || ns == "" {
			return nil, fmt.Errorf("invalid filter %q: want namespace=value", f)
		}
		allow := splitList(vals)
		if len(allow) == 0 {
			return nil, fmt.Errorf("invalid filter %q: no values", f)
		}
		if i, seen := pos[ns]; seen {
			out[i].Allow = append(out[i].Allow, allow...)
			continue
		}
		pos[ns] = len(out)
		out = append(out, semantic.Filter{Namespace: ns, Allow: allow})
	}
	return out, nil
}

func renderResults(results []semantic.SearchResult) string {
	if len(results) == 0 {
		return "No results"
	}
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			strconv.FormatFloat(float64(r.Score), 'f', 4, 32),
			r.Value(record.NSFilename),
			r.Value(record.NSStart) + " - " + r.Value(record.NSEnd),
			r.Value(record.NSSectionTitle),
			truncate(r.Content, 80),
		}
	}
	return renderTable([]string{"Score", "Video", "Span", "Section", "Text"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
