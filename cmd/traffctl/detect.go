package main

import (
	"fmt"
	"os"

	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file.csv>",
		Short: "Report which record type a CSV file would be imported as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			quiet := logrus.New()
			quiet.SetOutput(cmd.ErrOrStderr())
			service := ingestion.NewService(nil, nil, nil, ingestion.WithLogger(quiet))
			result, err := service.Detect(payload)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Matched() {
				return fmt.Errorf("no record type detected for %s", args[0])
			}
			return nil
		},
	}
}
