package httpx

import (
	"io"
	"net/http"
)

// StatusRecorder remembers the status code and body size written through
// it.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *StatusRecorder) Status() int {
	return rw.status
}

func (rw *StatusRecorder) BytesWritten() int64 {
	return rw.bytes
}

func (rw *StatusRecorder) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *StatusRecorder) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

// ReadFrom keeps the sendfile path of the underlying writer available to
// http.ServeContent.
func (rw *StatusRecorder) ReadFrom(src io.Reader) (int64, error) {
	n, err := io.Copy(rw.ResponseWriter, src)
	rw.bytes += n
	return n, err
}

func (rw *StatusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *StatusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
