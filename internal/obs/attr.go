package obs

import "log/slog"

func MachineID(id string) slog.Attr { return slog.String("machine_id", id) }

func Operation(op string) slog.Attr { return slog.String("operation", op) }

func Result(res string) slog.Attr { return slog.String("result", res) }

// RequestID returns an empty Attr for an empty id.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Error returns an empty Attr for a nil error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}
