package abtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries an id for every API request, so that client and
// server logs can be joined.
const RequestIDHeader = "X-Request-Id"

type contextKey string

const contextKeyRequestLog contextKey = "requestLog"

type requestLog struct {
	logger *slog.Logger
	start  time.Time
}

// restySlogLogger routes resty's own messages to a [slog.Logger].
type restySlogLogger struct {
	logger *slog.Logger
}

func (s restySlogLogger) Errorf(format string, v ...interface{}) {
	s.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (s restySlogLogger) Warnf(format string, v ...interface{}) {
	s.logger.Warn(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (s restySlogLogger) Debugf(format string, v ...interface{}) {
	s.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

// newRestyLogRequestMiddleware tags the request with a request id and stores
// a logger carrying it in the request context.
func newRestyLogRequestMiddleware(logger *slog.Logger) resty.RequestMiddleware {
	return func(_ *resty.Client, req *resty.Request) error {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req.SetHeader(RequestIDHeader, id)
		}
		l := logger.WithGroup("http").With(
			slog.String("request_id", id),
			slog.String("method", req.Method),
			slog.String("url", req.URL),
		)
		l.Debug("request")

		req.SetContext(context.WithValue(req.Context(), contextKeyRequestLog, &requestLog{logger: l, start: time.Now()}))
		return nil
	}
}

func newRestyLogResponseMiddleware(logger *slog.Logger) resty.ResponseMiddleware {
	return func(_ *resty.Client, resp *resty.Response) error {
		rl, ok := resp.Request.Context().Value(contextKeyRequestLog).(*requestLog)
		if !ok {
			rl = &requestLog{logger: logger.WithGroup("http"), start: resp.Request.Time}
		}
		l := rl.logger.With(
			slog.Int("status", resp.StatusCode()),
			slog.Duration("duration", time.Since(rl.start)),
			slog.Int64("size", resp.Size()),
			slog.Int("attempt", resp.Request.Attempt),
		)
		if resp.IsError() {
			l.Error("error response")
			return nil
		}
		l.Debug("response")
		return nil
	}
}
