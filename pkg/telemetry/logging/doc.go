// Package logging configures the process-wide log/slog logger.
//
// New builds a JSON or text handler at the configured level and wraps it
// so that:
//   - records logged with a context carry request_id, session and model
//     when those were stored with WithRequestID, WithSession and WithModel
//   - credentials are masked: values of keys such as api_key or
//     authorization, bearer tokens and app-/sk- keys inside strings
//
// Usage:
//
//	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "relay started") // includes request_id
//
// Package code logs through slog.Default(); FromContext is for handing a
// logger with request fields to code that has no context.
package logging
