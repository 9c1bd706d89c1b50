package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"folder2pdf/pdf"
	"folder2pdf/s3"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "folder2pdf",
	Short: "Merge a folder of PDFs and images into a single PDF",
	Long: `folder2pdf walks a folder in filename order and merges every PDF and
image it finds (jpg, jpeg, png, gif, bmp, tiff) into one PDF. Images are
placed on their own page, fitted inside a 20pt margin and centered.

Layout flags apply to both the merge and serve commands. Every flag can also
be set through the environment, e.g. FOLDER2PDF_QUALITY=90.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log-level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := pdf.DefaultOptions()
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("page-size", "A4", "page size: A3, A4, A5, letter, legal or WIDTHxHEIGHT in points")
	flags.Bool("landscape", false, "use the page size in landscape orientation")
	flags.Bool("fit-to-page", defaults.FitToPage, "scale images to fit inside the page margins")
	flags.Bool("keep-aspect", defaults.MaintainAspectRatio, "keep image proportions when fitting")
	flags.Int("quality", defaults.Quality, "JPEG quality (1-100) for re-encoded images")
	flags.Int("dpi", defaults.DPI, "DPI written into re-encoded image metadata")
	flags.String("temp-dir", "", "directory for temporary image pages (default: working directory)")

	flags.String("s3-endpoint", "", "S3-compatible endpoint for uploads (host:port or URL)")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-bucket", "", "S3 bucket for merged PDFs")
	flags.Bool("s3-use-ssl", false, "use TLS when talking to the S3 endpoint")
	flags.String("s3-region", "", "S3 region (default: looked up from the bucket)")

	for _, name := range []string{"log-level", "page-size", "landscape", "fit-to-page", "keep-aspect", "quality", "dpi", "temp-dir"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	for _, name := range []string{"endpoint", "access-key", "secret-key", "bucket", "use-ssl", "region"} {
		_ = viper.BindPFlag("s3."+name, flags.Lookup("s3-"+name))
	}
}

// initConfig wires environment overrides. There is no config file.
func initConfig() {
	viper.SetEnvPrefix("FOLDER2PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl)
	return nil
}

func s3Config() s3.Config {
	return s3.Config{
		Endpoint:  viper.GetString("s3.endpoint"),
		AccessKey: viper.GetString("s3.access-key"),
		SecretKey: viper.GetString("s3.secret-key"),
		Bucket:    viper.GetString("s3.bucket"),
		UseSSL:    viper.GetBool("s3.use-ssl"),
		Region:    viper.GetString("s3.region"),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
