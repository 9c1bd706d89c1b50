package pdf

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bradhe/stopwatch"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func init() {
	// Keep pdfcpu from creating its config directory under the user's home.
	api.DisableConfigDir()
}

// ImageConverter turns one image into a single-page PDF.
type ImageConverter interface {
	Convert(imagePath, outputPath string, opts Options) error
}

// Merger merges a folder of PDFs and images into one PDF.
//
// Temporary pages are written to TempDir as temp_<filename>.pdf. The name
// depends only on the source filename, so two merges sharing a TempDir can
// overwrite each other's pages; callers running merges side by side must
// give each its own TempDir.
type Merger struct {
	// Converter defaults to ImageToPage.
	Converter ImageConverter
	// TempDir defaults to the working directory.
	TempDir string
	Log     logrus.FieldLogger
}

// Result describes a successful merge.
type Result struct {
	// Output is empty when the folder held nothing to merge.
	Output    string
	Documents int
	Images    int
	Ignored   int
	Pages     int
	Elapsed   time.Duration
}

// TempName returns the name of the temporary page rendered for an image.
func TempName(imageName string) string {
	return "temp_" + imageName + ".pdf"
}

// MergeFolder merges every PDF and image directly inside inputDir, in
// filename order, into outputPath. Temporary pages are removed before it
// returns, whatever the outcome. An empty folder is not an error: nothing is
// written and Result.Output is empty.
func (m *Merger) MergeFolder(inputDir, outputPath string, opts Options) (Result, error) {
	log := m.logger().WithField("input", inputDir)
	watch := stopwatch.Start()

	var res Result
	var temps []string
	defer func() { removeTemps(temps) }()

	fail := func(err *MergeError) (Result, error) {
		log.WithError(err.Err).WithField("op", err.Op).Error("merge failed")
		return Result{}, err
	}

	if err := opts.Validate(); err != nil {
		return fail(&MergeError{Op: "options", Err: err})
	}

	sources, err := ListSources(inputDir)
	if err != nil {
		return fail(&MergeError{Op: "list", Path: inputDir, Err: err})
	}
	if err := checkOutputNotSource(outputPath, sources); err != nil {
		return fail(&MergeError{Op: "write", Path: outputPath, Err: err})
	}

	var parts []string
	for _, src := range sources {
		entry := log.WithFields(logrus.Fields{"file": src.Name, "kind": src.Kind})

		switch src.Kind {
		case Document:
			pages, err := api.PageCountFile(src.Path)
			if err != nil {
				return fail(&MergeError{Op: "append", Path: src.Path, Err: errors.Wrap(err, "reading pdf")})
			}
			parts = append(parts, src.Path)
			res.Documents++
			res.Pages += pages
			entry.WithField("pages", pages).Debug("appended document")

		case Image:
			tmp := filepath.Join(m.tempDir(), TempName(src.Name))
			temps = append(temps, tmp)
			if err := m.converter().Convert(src.Path, tmp, opts); err != nil {
				return fail(&MergeError{Op: "convert", Path: src.Path, Err: err})
			}
			parts = append(parts, tmp)
			res.Images++
			res.Pages++
			entry.Debug("converted image")

		default:
			res.Ignored++
			entry.Debug("ignored")
		}
	}

	if len(parts) == 0 {
		log.WithField("ignored", res.Ignored).Warn("no documents or images found, nothing written")
		return res, nil
	}

	if err := MergePdf(parts, outputPath, log); err != nil {
		return fail(&MergeError{Op: "write", Path: outputPath, Err: err})
	}
	res.Output = outputPath

	watch.Stop()
	res.Elapsed = watch.Milliseconds() * time.Millisecond
	log.WithFields(logrus.Fields{
		"output":     outputPath,
		"pages":      res.Pages,
		"documents":  res.Documents,
		"images":     res.Images,
		"ignored":    res.Ignored,
		"elapsed_ms": int64(watch.Milliseconds()),
	}).Info("merged folder")
	return res, nil
}

// MergePdf concatenates inFiles, in order, into outputFile.
func MergePdf(inFiles []string, outputFile string, log logrus.FieldLogger) error {
	watch := stopwatch.Start()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFiles(inFiles, conf); err != nil {
		return &WriteError{Path: outputFile, Err: errors.Wrap(err, "validating inputs")}
	}

	if len(inFiles) == 1 {
		if err := copyFile(inFiles[0], outputFile); err != nil {
			return &WriteError{Path: outputFile, Err: err}
		}
	} else if err := api.MergeCreateFile(inFiles, outputFile, false, conf); err != nil {
		return &WriteError{Path: outputFile, Err: errors.Wrap(err, "merging pdfs")}
	}

	watch.Stop()
	log.WithFields(logrus.Fields{
		"files":      len(inFiles),
		"elapsed_ms": int64(watch.Milliseconds()),
	}).Debug("wrote merged pdf")
	return nil
}

// checkOutputNotSource refuses an output path that names one of the merged
// sources. Writing it would truncate the source before it is read.
func checkOutputNotSource(outputPath string, sources []SourceFile) error {
	out, err := os.Stat(outputPath)
	if err != nil {
		// Nothing there yet, so it cannot be a source.
		return nil
	}
	for _, src := range sources {
		if src.Kind == Ignored {
			continue
		}
		info, err := os.Stat(src.Path)
		if err != nil {
			continue
		}
		if os.SameFile(out, info) {
			return errors.Errorf("output %s is the input file %s", outputPath, src.Name)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening source")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "creating destination")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copying")
	}
	return out.Close()
}

// removeTemps deletes the recorded temporary pages. Failures are ignored.
func removeTemps(temps []string) {
	for _, tmp := range temps {
		_ = os.Remove(tmp)
	}
}

func (m *Merger) converter() ImageConverter {
	if m.Converter == nil {
		return ImageToPage{}
	}
	return m.Converter
}

func (m *Merger) tempDir() string {
	if m.TempDir == "" {
		return "."
	}
	return m.TempDir
}

func (m *Merger) logger() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}
