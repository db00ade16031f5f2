package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/app"
	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"

	"github.com/spf13/cobra"
)

type importOptions struct {
	userID string
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a CSV file and wait for the job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer file.Close()

			application, err := app.New(ctx, cfg, logger, ingestion.WithInlineProcessing(true))
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Ingestion.Upload(ctx, ingestion.UploadRequest{
				UserID:   opts.userID,
				FileName: filepath.Base(args[0]),
				Data:     file,
			})
			if err != nil {
				return err
			}
			report, err := application.Ingestion.Status(ctx, result.JobID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user", "", "Owner of the import job (required)")
	_ = cmd.MarkFlagRequired("user")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(opts.userID) == "" {
			return fmt.Errorf("--user must not be blank")
		}
		return nil
	}
	return cmd
}
