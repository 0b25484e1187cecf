package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/matcher"
	"github.com/spf13/cobra"
)

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match EXPECTED EXTRACTED",
		Short: "Explain whether two invoice numbers match",
		Long: `Run the identifier matcher on an expected invoice number and one read off
a document, and show which stage decided.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(renderMatch(matcher.Explain(args[0], args[1])))
			return nil
		},
	}
}

func renderMatch(res matcher.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expected:   %s → %s\n", res.Expected, res.NormalizedExpected)
	fmt.Fprintf(&b, "Extracted:  %s → %s\n", res.Extracted, res.NormalizedExtract)
	fmt.Fprintf(&b, "Similarity: %.3f (threshold %.2f)\n", res.Similarity, matcher.SimilarityThreshold)
	fmt.Fprintf(&b, "Edit distance: %d\n", res.EditDistance)

	if res.Matched {
		b.WriteString(cli.FormatSuccess(fmt.Sprintf("Match (%s stage)", res.Stage)))
	} else {
		b.WriteString(cli.FormatError("No match"))
	}

	return cli.RenderBox("Identifier match", b.String())
}
