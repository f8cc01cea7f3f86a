package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/session"
)

type runOptions struct {
	filter string
	dryRun bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Upload, validate and import a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only import records whose name or email contains this text")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate only, do not import")
	return cmd
}

func runImport(cmd *cobra.Command, global *globalOptions, opts runOptions, path string) error {
	cfg, gateway, closeFn, err := openGateway(global)
	if err != nil {
		return err
	}
	defer closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	sess := session.New(gateway, session.Options{
		Limits: core.UploadLimits{
			MaxSize:            cfg.Upload.MaxFileSize,
			AcceptedExtensions: cfg.Upload.AcceptedExtensions,
		},
	})

	if err := sess.Upload(filepath.Base(path), data); err != nil {
		return err
	}
	if opts.filter != "" {
		if _, err := sess.Filter(opts.filter); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	result, err := sess.Validate(ctx)
	if err != nil {
		return err
	}
	if !result.Clean() {
		printFailures(out, sess, result)
		return fmt.Errorf("%d of %d records: %w", len(result.Failed), result.TotalProcessed, core.ErrValidationFailed)
	}
	fmt.Fprintf(out, "All %d selected records are valid\n", result.TotalProcessed)

	if opts.dryRun {
		return nil
	}

	imported, err := sess.Import(ctx)
	if err != nil {
		return err
	}
	if !imported.Committed() {
		printFailures(out, sess, imported)
		return fmt.Errorf("backend rejected the batch: %w", core.ErrValidationFailed)
	}

	fmt.Fprintf(out, "Imported %d users\n", len(imported.Successful))
	for _, u := range imported.Successful {
		fmt.Fprintf(out, "  %s  %s\n", u.ID, u.Email)
	}
	return nil
}

func printFailures(out io.Writer, sess *session.Session, result core.ImportResult) {
	fmt.Fprintf(out, "%d of %d records failed validation:\n", len(result.Failed), result.TotalProcessed)
	for _, f := range result.Failed {
		row, ok := sess.SourceRow(f.Row)
		if !ok {
			row = f.Row
		}
		fmt.Fprintf(out, "  row %d: %s\n", row, strings.Join(f.Errors, "; "))
	}
}
