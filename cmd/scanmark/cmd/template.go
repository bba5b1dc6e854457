package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scanmark/scanmark/internal/template"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect and convert answer-sheet templates",
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a template file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := template.Load(args[0])
		if err != nil {
			return err
		}
		unmapped := 0
		for _, r := range t.Regions {
			if !r.Mapped() {
				unmapped++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "template %q: %d pages, %d regions (%d unmapped, skipped at grading)\n",
			t.Name, t.Pages, len(t.Regions), unmapped)
		return nil
	},
}

var templateConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a template between JSON and YAML",
	Long:  `Convert loads a template and re-saves it in the format implied by the output extension. The conversion round-trips every field.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := template.Load(args[0])
		if err != nil {
			return err
		}
		if err := template.Save(t, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateValidateCmd)
	templateCmd.AddCommand(templateConvertCmd)
	rootCmd.AddCommand(templateCmd)
}
