package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"salescomposer/internal/app"
	"salescomposer/internal/domain"
	"salescomposer/internal/knowledge"
	"salescomposer/internal/ratelimit"
	"salescomposer/internal/scenario"
)

func newComposeCmd(opts *rootOptions) *cobra.Command {
	var (
		inputPath string
		notes     string
		caller    string
		provider  string
	)
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose talking points for one shed configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readInput(inputPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("notes") {
				in.CustomerNotes = notes
			}
			if provider != "" {
				in.PreferredProvider = provider
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Composer.Compose(cmd.Context(), caller, in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "compose input as YAML or JSON (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "customer notes, replacing those in the input file")
	cmd.Flags().StringVar(&caller, "caller", ratelimit.DefaultCaller, "caller id for rate limiting")
	cmd.Flags().StringVar(&provider, "provider", "", "preferred provider: openai or anthropic")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Capture and manage agent feedback",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Feedback.Load(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tACTIVE\tSCENARIOS\tFEEDBACK")
			for _, e := range a.Feedback.List(all) {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", e.ID, e.Priority, e.Active,
					strings.Join(e.AppliesToScenarios, ","), oneLine(e.UserFeedback, 60))
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include deactivated entries")

	var (
		inputPath  string
		outputPath string
		text       string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record feedback about a composition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readInput(inputPath)
			if err != nil {
				return err
			}
			var out domain.ComposeOutput
			if outputPath != "" {
				if err := readFile(outputPath, &out); err != nil {
					return err
				}
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			entry, err := a.Composer.SubmitFeedback(cmd.Context(), in, out, text)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entry)
		},
	}
	add.Flags().StringVarP(&inputPath, "input", "i", "", "the compose input the feedback is about (required)")
	add.Flags().StringVarP(&outputPath, "output", "o", "", "the composition that was generated, as JSON")
	add.Flags().StringVarP(&text, "text", "t", "", "the feedback itself (required)")
	_ = add.MarkFlagRequired("input")
	_ = add.MarkFlagRequired("text")

	cmd.AddCommand(list, add, newToggleCmd(opts, "feedback", func(a *app.App) toggleFunc { return a.Feedback.Toggle }))
	return cmd
}

func newOverrideCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage global overrides applied to every composition",
	}

	var priority string
	add := &cobra.Command{
		Use:   "add <rule>",
		Short: "Add a global override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePriority(priority)
			if err != nil {
				return err
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			ov, err := a.Feedback.AddOverride(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ov)
		},
	}
	add.Flags().StringVar(&priority, "priority", string(domain.PriorityHigh), "critical, high, medium or low")

	list := &cobra.Command{
		Use:   "list",
		Short: "List global overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Feedback.Load(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tACTIVE\tRULE")
			for _, o := range a.Feedback.ListOverrides(true) {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", o.ID, o.Priority, o.Active, o.Rule)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list, newToggleCmd(opts, "override", func(a *app.App) toggleFunc { return a.Feedback.ToggleOverride }))
	return cmd
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent compositions from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			entries, err := a.Composer.RecentLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tID\tHASH\tFALLBACK\tPROVIDER\tFEEDBACK\tPREVIEW")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.ID, e.InputsHash, e.FallbackUsed,
					orDash(e.Provider), orDash(strings.Join(e.FeedbackIDs, ",")), oneLine(e.OutputPreview, 50))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than audit_retention_days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.PruneAudit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d audit entries\n", n)
			return nil
		},
	}
	cmd.AddCommand(prune)
	return cmd
}

func newKBCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge base",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "knowledge base directory (default: built-in)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List benefit and comparison snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := knowledge.Load(dir, 0)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tCOMPETITOR\tTRIGGERS")
			for _, s := range append(lib.Benefits(), lib.Comparisons()...) {
				triggers := append(append([]string(nil), s.MaterialTrigger...), s.ScenarioTrigger...)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Topic, orDash(s.Competitor), orDash(strings.Join(triggers, ",")))
			}
			return w.Flush()
		},
	}

	var depth int
	cascade := &cobra.Command{
		Use:   "cascade <snippet-or-template-id>",
		Short: "Render a benefit cascade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := knowledge.Load(dir, 0)
			if err != nil {
				return err
			}
			if text, ok := lib.Template(args[0]); ok {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}
			if _, ok := lib.Snippet(args[0]); !ok {
				return fmt.Errorf("no snippet or cascade template %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), lib.Cascade(args[0], depth))
			return nil
		},
	}
	cascade.Flags().IntVar(&depth, "depth", knowledge.DefaultCascadeDepth, "maximum cascade depth")

	var inputPath string
	sel := &cobra.Command{
		Use:   "select",
		Short: "Show the scenarios and snippets chosen for an input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readInput(inputPath)
			if err != nil {
				return err
			}
			lib, err := knowledge.Load(dir, 0)
			if err != nil {
				return err
			}
			det := scenario.New()
			sc := det.Detect(in.CustomerNotes, in.CalcSummary)
			competitor := det.DetectCompetitor(in.CustomerNotes)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"scenarios":  sc.DetectedScenarios,
				"competitor": competitor,
				"snippets":   knowledge.IDs(lib.Select(sc, competitor)),
			})
		},
	}
	sel.Flags().StringVarP(&inputPath, "input", "i", "", "compose input as YAML or JSON (required)")
	_ = sel.MarkFlagRequired("input")

	cmd.AddCommand(list, cascade, sel)
	return cmd
}

type toggleFunc func(ctx context.Context, id string, active bool) error

func newToggleCmd(opts *rootOptions, noun string, pick func(*app.App) toggleFunc) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Set the active flag on a stored " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := pick(a)(cmd.Context(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s active=%t\n", noun, args[0], active)
			return nil
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "new state; entries are never deleted")
	return cmd
}

func readInput(path string) (domain.ComposeInput, error) {
	var in domain.ComposeInput
	err := readFile(path, &in)
	return in, err
}

// readFile decodes JSON for .json files and YAML otherwise.
func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, v)
	} else {
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
