package main

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"folder2pdf/pdf"
	"folder2pdf/s3"
)

const maxUploadBytes = 256 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve folder merges over HTTP",
	Long: `Serve accepts multipart uploads on POST /merge (field "files", repeatable)
and answers with the merged PDF. Layout flags act as defaults; each request may
override them with query parameters of the same name.

When an S3 bucket is configured the merged PDF is uploaded instead and the
response is its id, which GET /merged/:id serves back.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Fail on bad defaults before accepting requests.
	if _, err := layoutOptions(viperLookup); err != nil {
		return err
	}

	srv := &server{
		lookup: viperLookup,
		tmpDir: viper.GetString("temp-dir"),
		log:    logrus.StandardLogger(),
	}
	if cfg := s3Config(); cfg.Enabled() {
		store, err := s3.NewStore(cfg, srv.log)
		if err != nil {
			return err
		}
		srv.store = store
	}

	httpServer := &http.Server{
		Addr:              viper.GetString("addr"),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	srv.log.WithField("addr", httpServer.Addr).Info("server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type server struct {
	store  *s3.Store
	lookup func(key string) string
	// tmpDir holds per-request staging directories; empty means os.TempDir.
	tmpDir string
	log    logrus.FieldLogger
}

func (s *server) routes() *httprouter.Router {
	router := httprouter.New()
	router.POST("/merge", s.Merge)
	router.GET("/merged/:id", s.Download)
	return router
}

// Merge stages the uploaded files in a private directory and merges them in
// filename order. Each request gets its own directory so temporary page
// names cannot collide between requests.
func (s *server) Merge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	opts, err := layoutOptions(func(key string) string {
		if query.Has(key) {
			return query.Get(key)
		}
		return s.lookup(key)
	})
	if err != nil {
		sendJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		sendJSON(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		sendJSON(w, http.StatusBadRequest, `no files uploaded in field "files"`)
		return
	}

	tmpDir := s.tmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	requestID := uuid.NewString()
	staging := filepath.Join(tmpDir, requestID)
	inputDir := filepath.Join(staging, "in")
	defer os.RemoveAll(staging)

	log := s.log.WithField("request", requestID)

	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		log.WithError(err).Error("creating staging directory")
		sendJSON(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	for _, fh := range uploads {
		if err := stageUpload(fh, inputDir); err != nil {
			log.WithError(err).WithField("file", fh.Filename).Error("staging upload")
			sendJSON(w, http.StatusInternalServerError, "could not stage upload")
			return
		}
	}

	output := filepath.Join(staging, "merged.pdf")
	merger := &pdf.Merger{TempDir: staging, Log: log}
	res, err := merger.MergeFolder(inputDir, output, opts)
	if err != nil {
		sendJSON(w, mergeStatus(err), err.Error())
		return
	}
	if res.Output == "" {
		sendJSON(w, http.StatusBadRequest, "no PDFs or images among the uploaded files")
		return
	}

	if s.store != nil {
		objectID := uuid.NewString()
		if err := s.store.Upload(r.Context(), objectID, output); err != nil {
			log.WithError(err).Error("upload failed")
			sendJSON(w, http.StatusBadGateway, "could not store merged PDF")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, objectID)
		return
	}

	f, err := os.Open(output)
	if err != nil {
		log.WithError(err).Error("opening merged pdf")
		sendJSON(w, http.StatusInternalServerError, "could not read merged PDF")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

// Download serves a merged PDF previously uploaded to the store.
func (s *server) Download(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.store == nil {
		sendJSON(w, http.StatusNotFound, "no object store configured")
		return
	}

	id := ps.ByName("id")
	if _, err := uuid.Parse(id); err != nil {
		sendJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	data, err := s.store.Download(r.Context(), id)
	if err != nil {
		if s3.IsNotFound(err) {
			sendJSON(w, http.StatusNotFound, "no merged PDF with id "+id)
			return
		}
		s.log.WithError(err).WithField("object", id).Error("download failed")
		sendJSON(w, http.StatusBadGateway, "could not fetch merged PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func stageUpload(fh *multipart.FileHeader, dir string) error {
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." {
		return errors.Errorf("invalid file name %q", fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// mergeStatus maps a merge failure to an HTTP status: bad options and
// undecodable uploads are the client's fault.
func mergeStatus(err error) int {
	var optErr *pdf.OptionsError
	var decErr *pdf.DecodeError
	var mergeErr *pdf.MergeError
	switch {
	case errors.As(err, &optErr), errors.As(err, &decErr):
		return http.StatusBadRequest
	case errors.As(err, &mergeErr) && mergeErr.Op == "append":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sendJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
