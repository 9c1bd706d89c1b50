package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"folder2pdf/pdf"
	"folder2pdf/s3"
)

const defaultInputDir = "input"

var mergeCmd = &cobra.Command{
	Use:   "merge [input-dir]",
	Short: "Merge every PDF and image in a folder into one PDF",
	Long: `Merge reads the files directly inside input-dir (default "input") in
filename order. PDFs are appended as they are, images are rendered onto a page
of their own, and anything else is skipped. The result is written to --output,
or to <input-dir>.pdf next to the folder.

If input-dir does not exist it is created and nothing else happens: add your
files to it and run the command again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringP("output", "o", "", "output PDF (default: <input-dir>.pdf)")
	mergeCmd.Flags().Bool("upload", false, "upload the merged PDF to the configured S3 bucket and print its id")
	_ = viper.BindPFlag("output", mergeCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("upload", mergeCmd.Flags().Lookup("upload"))

	rootCmd.AddCommand(mergeCmd)
}

// defaultOutput names the output after the input folder and places it next
// to the folder, so "merge ." inside scans/ writes ../scans.pdf.
func defaultOutput(inputDir string) (string, error) {
	abs, err := filepath.Abs(inputDir)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", inputDir)
	}
	parent, name := filepath.Split(abs)
	if name == "" {
		return "", errors.Errorf("cannot name an output after %s, use --output", abs)
	}
	return filepath.Join(parent, name+".pdf"), nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	inputDir := defaultInputDir
	if len(args) == 1 {
		inputDir = args[0]
	}
	inputDir = filepath.Clean(inputDir)

	output := viper.GetString("output")
	if output == "" {
		var err error
		if output, err = defaultOutput(inputDir); err != nil {
			return err
		}
	}

	if _, err := os.Stat(inputDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(inputDir, 0o755); err != nil {
			return errors.Wrapf(err, "creating input directory %s", inputDir)
		}
		logrus.Infof("Created input directory: %s", inputDir)
		logrus.Info("Please add your PDF and image files to this directory and run the command again.")
		return nil
	}

	opts, err := layoutOptions(viperLookup)
	if err != nil {
		return err
	}

	merger := &pdf.Merger{
		TempDir: viper.GetString("temp-dir"),
		Log:     logrus.StandardLogger(),
	}
	res, err := merger.MergeFolder(inputDir, output, opts)
	if err != nil {
		return err
	}
	if res.Output == "" {
		return nil
	}
	logrus.Infof("Successfully created merged PDF: %s", res.Output)

	if !viper.GetBool("upload") {
		return nil
	}
	store, err := s3.NewStore(s3Config(), logrus.StandardLogger())
	if err != nil {
		return err
	}
	id := uuid.NewString()
	if err := store.Upload(cmd.Context(), id, res.Output); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
