package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/export"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Refresh once and write the dashboard workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Dashboard.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		data, err := codec.EncodeXLSX(export.Tables(res.Bundle))
		if err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(exportDir, export.FileName(time.Now())+".xlsx")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		logger.Info("export written", "path", path, "bundle_id", res.BundleID, "degraded", res.Status == dashboard.StatusDegraded)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", ".", "directory to write the workbook to")
}
