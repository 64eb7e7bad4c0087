package logger

import "github.com/rs/zerolog"

// ZerologAdapter wraps a zerolog.Logger to implement the Logger interface.
// Key-value pairs are attached with Fields; a trailing key without a value is
// logged under "!BADKEY", matching slog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new logger adapter wrapping a zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Debug logs a debug-level message with structured key-value pairs.
func (a *ZerologAdapter) Debug(msg string, args ...any) {
	a.log(a.logger.Debug(), msg, args)
}

// Info logs an info-level message with structured key-value pairs.
func (a *ZerologAdapter) Info(msg string, args ...any) {
	a.log(a.logger.Info(), msg, args)
}

// Warn logs a warning-level message with structured key-value pairs.
func (a *ZerologAdapter) Warn(msg string, args ...any) {
	a.log(a.logger.Warn(), msg, args)
}

// Error logs an error-level message with structured key-value pairs.
func (a *ZerologAdapter) Error(msg string, args ...any) {
	a.log(a.logger.Error(), msg, args)
}

func (a *ZerologAdapter) log(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	fields := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			continue
		}
		if err, isErr := args[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	e.Fields(fields).Msg(msg)
}
