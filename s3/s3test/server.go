// Package s3test provides an in-memory S3 bucket served over HTTP, enough
// for minio-go to upload and download whole objects in tests.
package s3test

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Region is the region clients should be configured with, so they skip
// the bucket location lookup the fake does not answer.
const Region = "us-east-1"

// Server answers path-style PutObject and GetObject requests for a single
// bucket. Requests are not authenticated.
type Server struct {
	*httptest.Server
	Bucket string

	mu         sync.Mutex
	objects    map[string][]byte
	failStatus int
	failCode   string
}

// NewServer starts a fake bucket. Close it when done.
func NewServer(bucket string) *Server {
	s := &Server{Bucket: bucket, objects: map[string][]byte{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the host:port clients connect to.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Fail makes every following request answer with status and the S3 error
// code, as a misconfigured or unreachable bucket would.
func (s *Server) Fail(status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failCode = status, code
}

// Object returns the stored content of key.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Put stores data under key directly.
func (s *Server) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, code := s.failStatus, s.failCode
	s.mu.Unlock()
	if status != 0 {
		writeError(w, status, code)
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != s.Bucket {
		writeError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		s.Put(key, data)
		sum := md5.Sum(data)
		w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet, http.MethodHead:
		data, ok := s.Object(key)
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		sum := md5.Sum(data)
		w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

// readPayload returns the object bytes of a PUT, undoing the aws-chunked
// framing minio-go uses over plain HTTP.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}

	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

type errorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(errorResponse{Code: code, Message: http.StatusText(status)})
}
