package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

func writeCodes(w io.Writer, prefix string, codes []grblMod.CodeDescription) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, code := range codes {
		if _, err := fmt.Fprintf(tw, "%s:%d\t%s\t%s\n", prefix, code.Code, code.Short, code.Long); err != nil {
			return err
		}
	}
	return tw.Flush()
}

var CodesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Print Grbl error and alarm codes.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		output, err := outputValue.WriteCloser(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, output.Close()) }()

		if err := writeCodes(output, "error", grblMod.ErrorCodes()); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(output); err != nil {
			return err
		}
		return writeCodes(output, "ALARM", grblMod.AlarmCodes())
	}),
}

func init() {
	AddOutputFlags(CodesCmd)

	RootCmd.AddCommand(CodesCmd)
}
