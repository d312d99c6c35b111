package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"svgbook/internal/fence"
)

func newTokensCmd() *cobra.Command {
	book := "."

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List the fence info-strings recognized by the configured languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd.Context(), cmd.OutOrStdout(), book)
		},
	}
	cmd.Flags().StringVar(&book, "book", book, "directory containing book.toml")
	return cmd
}

func runTokens(ctx context.Context, w io.Writer, book string) error {
	cfg, _, err := loadBook(ctx, book)
	if err != nil {
		return err
	}
	tbl, err := fence.NewTable(cfg.Diagrams().Languages...)
	if err != nil {
		return err
	}

	rows := make([][]string, 0)
	for _, tok := range tbl.Tokens() {
		order := "diagram first"
		switch {
		case !tok.Variant.Echo():
			order = ""
		case tok.SourceFirst:
			order = "source first"
		}
		rows = append(rows, []string{tok.Info, tok.Language, tok.Variant.String(), order})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Info-string", "Language", "Variant", "Order").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	_, err = fmt.Fprintln(w, t.String())
	return err
}
