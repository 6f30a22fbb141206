package cli

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/declindex/internal/decl"
	"github.com/mvp-joe/declindex/internal/symtree"
	"github.com/mvp-joe/declindex/internal/workspace"
)

var (
	findIgnoreCase bool
	findDir        string
	searchKind     string
)

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find declarations by name",
	Long: `Find looks up a declaration name in the project, the projects it depends
on and its reference libraries. Each match is printed with its qualified
path and location.

Examples:
  declindex find Server
  declindex find server --ignore-case --dir ../service
`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search declarations with a matching strategy",
	Long: `Search matches declaration names with one of the strategies:

  exact        case-sensitive equality
  ignore-case  case-insensitive equality
  fuzzy        small edit distance, scaled by the pattern length
  glob         shell glob such as "Handle*"
  regex        regular expression such as "^New[A-Z]"
`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(searchCmd)

	findCmd.Flags().BoolVarP(&findIgnoreCase, "ignore-case", "i", false, "Match names case-insensitively")
	for _, cmd := range []*cobra.Command{findCmd, searchCmd} {
		cmd.Flags().StringVarP(&findDir, "dir", "d", ".", "Project directory")
	}
	searchCmd.Flags().StringVarP(&searchKind, "kind", "k", "fuzzy", "Matching strategy: exact, ignore-case, fuzzy, glob or regex")
}

func runFind(cmd *cobra.Command, args []string) error {
	kind := symtree.SearchExact
	if findIgnoreCase {
		kind = symtree.SearchExactIgnoreCase
	}
	return runQuery(cmd, symtree.Query{Kind: kind, Name: args[0]})
}

func runSearch(cmd *cobra.Command, args []string) error {
	q, err := parseQuery(searchKind, args[0])
	if err != nil {
		return err
	}
	return runQuery(cmd, q)
}

// parseQuery turns a command line strategy and pattern into a query.
func parseQuery(kind, pattern string) (symtree.Query, error) {
	switch strings.ToLower(kind) {
	case "glob":
		g, err := glob.Compile(pattern)
		if err != nil {
			return symtree.Query{}, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		return symtree.Query{Kind: symtree.SearchCustom, Name: pattern, Predicate: g.Match}, nil
	case "regex", "regexp":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return symtree.Query{}, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
		}
		return symtree.Query{Kind: symtree.SearchCustom, Name: pattern, Predicate: re.MatchString}, nil
	}
	k, err := symtree.ParseSearchKind(strings.ToLower(kind))
	if err != nil || k == symtree.SearchCustom {
		return symtree.Query{}, fmt.Errorf("unknown search kind %q", kind)
	}
	return symtree.Query{Kind: k, Name: pattern}, nil
}

func runQuery(cmd *cobra.Command, q symtree.Query) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dir, err := resolveDir([]string{findDir})
	if err != nil {
		return err
	}
	env, err := openEnvironment(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	matches, err := env.workspace.Search(ctx, env.session, q)
	if err != nil {
		return err
	}
	printMatches(cmd.OutOrStdout(), matches)
	return nil
}

func printMatches(out io.Writer, matches []workspace.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(out, "%s  %s  [%s]\n", strings.Join(m.Path, "."), decl.Describe(m.Symbol), m.Source)
	}
}
