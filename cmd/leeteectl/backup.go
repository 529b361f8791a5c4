package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leetee/internal/service"
	"leetee/internal/storage"
)

var (
	exportOutput string
	importInput  string
	importClear  bool
	importYes    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export learner progress to a JSON file",
	Long: `Writes every stored learner key to a JSON backup. The storage backend is
chosen by STORAGE_BACKEND, DATABASE_TYPE, DB_PATH, DATABASE_URL and REDIS_ADDR.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import learner progress from a JSON backup",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "Input file path")
	importCmd.Flags().BoolVar(&importClear, "clear", false, "Delete existing progress before import (destructive)")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "Do not ask for confirmation")
	_ = importCmd.MarkFlagRequired("input")
}

func openBackup(cmd *cobra.Command) (*service.BackupService, func(), error) {
	backend, err := storage.Open(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.Warn("failed to close storage", "error", err)
		}
	}
	return service.NewBackupService(backend.KV, backend.Name, log), closeFn, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	outputPath := exportOutput
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	backup, closeFn, err := openBackup(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := backup.ExportFile(cmd.Context(), outputPath)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", n, outputPath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(importInput); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	if importClear && !importYes {
		fmt.Fprint(cmd.OutOrStdout(), "WARNING: This will delete all existing progress. Type 'yes' to confirm: ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Import cancelled")
			return nil
		}
	}

	backup, closeFn, err := openBackup(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := backup.ImportFile(cmd.Context(), importInput, importClear)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries from %s\n", n, importInput)
	return nil
}
