package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dvloznov/statement-normalizer/internal/export"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	processText       string
	processFile       string
	processURI        string
	processFormat     string
	processOut        string
	processForceModel bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one statement and print the result",
	Long: `Processes a single statement given as text, a local file or a gs:// URI.

The result envelope is printed as JSON or YAML. CSV and XLSX print the
transactions only. The command exits non-zero when processing fails.`,
	Example: `  cli process --file statement.pdf
  cli process --uri gs://statements/2024-01.pdf --format yaml
  cli process --file statement.pdf --out ledger.xlsx
  pdftotext statement.pdf - | cli process --file -`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processText, "text", "", "Statement text")
	processCmd.Flags().StringVar(&processFile, "file", "", "Path to a PDF or text file, or - for stdin")
	processCmd.Flags().StringVar(&processURI, "uri", "", "gs:// URI of the statement")
	processCmd.Flags().StringVar(&processFormat, "format", "", "Output format: json, yaml, csv or xlsx (default from --out extension, else json)")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "Write output to this file instead of stdout")
	processCmd.Flags().BoolVar(&processForceModel, "force-model", false, "Send the PDF to the model even if it has a text layer")
	processCmd.MarkFlagsMutuallyExclusive("text", "file", "uri")
	processCmd.MarkFlagsOneRequired("text", "file", "uri")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(processFormat, processOut)
	if err != nil {
		return err
	}

	in, err := processInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx = logger.WithContext(ctx, a.log)

	res := a.processor.Process(ctx, in)

	if !res.Success && (format == export.FormatCSV || format == export.FormatXLSX) {
		// Tabular formats have nowhere to put the failure; show the envelope.
		_ = export.WriteJSON(cmd.ErrOrStderr(), res)
		return processFailed(res)
	}
	if err := writeOutput(cmd.OutOrStdout(), processOut, format, res); err != nil {
		return err
	}
	if !res.Success {
		return processFailed(res)
	}
	return nil
}

func processInput(stdin io.Reader) (pipeline.Input, error) {
	in := pipeline.Input{Text: processText, URI: processURI, ForceModel: processForceModel}
	switch processFile {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return in, fmt.Errorf("read stdin: %w", err)
		}
		in.Data = data
	default:
		data, err := os.ReadFile(processFile)
		if err != nil {
			return in, fmt.Errorf("read %s: %w", processFile, err)
		}
		in.Data = data
		in.Filename = filepath.Base(processFile)
	}
	return in, nil
}

func outputFormat(flag, out string) (export.Format, error) {
	if flag == "" && out != "" {
		return export.ParseFormat(filepath.Ext(out))
	}
	return export.ParseFormat(flag)
}

// writeOutput writes res to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, format export.Format, res pipeline.Result) error {
	if path == "" {
		return export.Write(stdout, format, res)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.Write(f, format, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func processFailed(res pipeline.Result) error {
	if res.Error == nil {
		return errors.New(res.Message)
	}
	return fmt.Errorf("%s: %s", res.Error.Kind, strings.TrimSpace(res.Error.Message))
}
