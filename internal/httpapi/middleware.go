package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaxLogBytes = 2048

// statusRecorder keeps the status code and the first maxLogBytes of the body
// so failed responses can be logged.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	maxLogBytes  int
	logBody      bytes.Buffer
	truncated    bool
	bytesWritten int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	written, err := r.ResponseWriter.Write(p)
	r.bytesWritten += written

	if room := r.maxLogBytes - r.logBody.Len(); room > 0 {
		if written > room {
			r.logBody.Write(p[:room])
			r.truncated = true
		} else {
			r.logBody.Write(p[:written])
		}
	} else if written > 0 {
		r.truncated = true
	}
	return written, err
}

func withRequestLogging(next http.Handler, log logrus.FieldLogger, observer RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		if observer != nil {
			observer.RequestStarted()
		}

		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			maxLogBytes:    defaultMaxLogBytes,
		}
		next.ServeHTTP(recorder, r)

		elapsed := time.Since(started)
		if observer != nil {
			observer.RequestFinished(r.Method, recorder.statusCode, elapsed)
		}

		entry := log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"bytes":       recorder.bytesWritten,
			"duration_ms": elapsed.Milliseconds(),
		})
		switch {
		case recorder.statusCode >= http.StatusInternalServerError:
			entry.WithFields(logrus.Fields{
				"response":  recorder.logBody.String(),
				"truncated": recorder.truncated,
			}).Error("request failed")
		case recorder.statusCode >= http.StatusBadRequest:
			entry.WithField("response", recorder.logBody.String()).Warn("request rejected")
		default:
			entry.Info("request served")
		}
	})
}
