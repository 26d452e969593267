package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyApplianceID   = "appliance_id"
	KeyApplianceName = "appliance_name"
	KeyAccountID     = "account_id"
	KeyTouchKind     = "touch_kind"
	KeySequence      = "sequence"
	KeyState         = "state"
	KeyOperation     = "operation"
	KeyRequestID     = "request_id"
	KeyMethod        = "method"
	KeyPath          = "path"
	KeyStatus        = "status"
	KeyRemoteAddr    = "remote_addr"
	KeyDurationMS    = "duration_ms"
	KeyError         = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ApplianceID(id int64) slog.Attr   { return slog.Int64(KeyApplianceID, id) }
func ApplianceName(n string) slog.Attr { return slog.String(KeyApplianceName, n) }
func AccountID(id int64) slog.Attr     { return slog.Int64(KeyAccountID, id) }
func TouchKind(k string) slog.Attr     { return slog.String(KeyTouchKind, k) }
func Sequence(seq int64) slog.Attr     { return slog.Int64(KeySequence, seq) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Operation(op string) slog.Attr    { return slog.String(KeyOperation, op) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
