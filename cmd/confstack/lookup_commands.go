package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"confstack/internal/api"
	"confstack/internal/inherit"
	"confstack/internal/tree"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print the aggregated value at a configuration path",
		Long: "Print the value at a \"/\"-delimited path such as config/Site/url.\n" +
			"Scalars print as text and sequences one item per line; sections and\n" +
			"whole files print as JSON. An absent path exits non-zero.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = tree.JoinPath(tree.SplitPath(args[0]))
			}
			value, err := eng.Get(cmd.Context(), path)
			if err != nil {
				return err
			}
			if value == nil {
				return fmt.Errorf("configuration path %q not found", path)
			}
			if ctx.jsonFlag != nil && *ctx.jsonFlag {
				return writeJSON(cmd, api.ConfigResponse{Path: path, Value: value})
			}
			out := cmd.OutOrStdout()
			switch value.Kind() {
			case tree.KindScalar:
				fmt.Fprintln(out, value.String())
			case tree.KindSequence:
				for _, item := range value.Strings() {
					fmt.Fprintln(out, item)
				}
			default:
				return writeJSON(cmd, value)
			}
			return nil
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard cached configuration and its snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Reset(cmd.Context()); err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, api.ResetResponse{Reset: true})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration cache reset")
			return nil
		},
	}
}

func newStackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stack",
		Short: "Show the override directory stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			stack := eng.Stack()
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, api.FromStack(stack))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Base: %s\n", eng.Locator().BaseDir())
			if len(stack) == 0 {
				fmt.Fprintln(out, "No override directories")
				return nil
			}
			rows := make([][]string, 0, len(stack))
			for i, dir := range stack {
				parent := dir.Descriptor.ParentPath
				if parent != "" && dir.Descriptor.ParentIsRelative {
					parent += " (relative)"
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), dir.Path, dir.ConfigSubdir, parent})
			}
			printTable(cmd, []string{"#", "Directory", "Config Subdir", "Parent"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
			return nil
		},
	}
}

type locateCandidate struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

type locateResult struct {
	File       string            `json:"file"`
	Resolved   string            `json:"resolved"`
	Local      string            `json:"local,omitempty"`
	Candidates []locateCandidate `json:"candidates"`
}

func newLocateCommand(ctx *commandContext) *cobra.Command {
	var subdir string
	var force bool

	cmd := &cobra.Command{
		Use:   "locate <file>",
		Short: "Show where a configuration file resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("subdir") {
				subdir = eng.Config().Files.ConfigSubdir
			}
			loc := eng.Locator()
			file := strings.TrimSpace(args[0])

			result := locateResult{File: file, Resolved: loc.Resolve(file, subdir)}
			if local, ok := loc.LocalPath(file, subdir, force); ok {
				result.Local = local
				if force {
					result.Resolved = local
				}
			}
			for _, candidate := range loc.Candidates(file, subdir) {
				info, statErr := os.Stat(candidate)
				result.Candidates = append(result.Candidates, locateCandidate{
					Path:   candidate,
					Exists: statErr == nil && !info.IsDir(),
				})
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved: %s\n", result.Resolved)
			rows := make([][]string, 0, len(result.Candidates))
			for i, c := range result.Candidates {
				rows = append(rows, []string{strconv.Itoa(i + 1), c.Path, yesNo(c.Exists)})
			}
			printTable(cmd, []string{"#", "Candidate", "Exists"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft})
			return nil
		},
	}

	cmd.Flags().StringVar(&subdir, "subdir", "", "Config subdirectory (defaults to [files] config_subdir)")
	cmd.Flags().BoolVar(&force, "force", false, "Report the most specific override path even when it does not exist")
	return cmd
}

type chainEntry struct {
	Path         string
	Parent       string
	OverrideFull []string
	MergeArrays  bool
	Sections     []string
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var subdir string
	var chain bool

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Print a configuration file merged with its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("subdir") {
				subdir = eng.Config().Files.ConfigSubdir
			}
			file := strings.TrimSpace(args[0])

			if !chain {
				doc, err := eng.Load(cmd.Context(), file, subdir)
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			}

			path := eng.Locator().Resolve(file, subdir)
			links, err := eng.Loader().Chain(cmd.Context(), path)
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, links)
			}
			if len(links) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", path)
				return nil
			}
			printChain(cmd, links)
			return nil
		},
	}

	cmd.Flags().StringVar(&subdir, "subdir", "", "Config subdirectory (defaults to [files] config_subdir)")
	cmd.Flags().BoolVar(&chain, "chain", false, "Show the inheritance chain instead of the merged result")
	return cmd
}

func printChain(cmd *cobra.Command, links []inherit.Link) {
	rows := make([][]string, 0, len(links))
	for i, link := range links {
		entry := describeLink(link)
		parent := entry.Parent
		if len(entry.OverrideFull) > 0 {
			parent += " [override: " + strings.Join(entry.OverrideFull, ", ") + "]"
		}
		if entry.MergeArrays {
			parent += " [merge arrays]"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), entry.Path, strings.Join(entry.Sections, ", "), parent})
	}
	printTable(cmd, []string{"#", "File", "Sections", "Parent"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
}

func describeLink(link inherit.Link) chainEntry {
	entry := chainEntry{Path: link.Path}
	if link.Document == nil {
		return entry
	}
	entry.Sections = link.Document.SectionNames()
	if p := link.Document.Parent(); p != nil {
		entry.Parent = p.Path
		if entry.Parent == "" {
			entry.Parent = p.RelativePath
		}
		entry.OverrideFull = p.OverrideFullSections
		entry.MergeArrays = p.MergeArraySettings
	}
	return entry
}
