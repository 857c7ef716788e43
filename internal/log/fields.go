package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldMode       = "mode"
	FieldUserID     = "user_id"
	FieldResource   = "resource"
	FieldResourceID = "resource_id"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldEventType  = "event_type"
	FieldRequestID  = "request_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentSession    = "session"
	ComponentRemote     = "remote"
	ComponentArbiter    = "arbiter"
	ComponentLocalStore = "localstore"
	ComponentStorage    = "storage"
	ComponentTracker    = "tracker"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpFilter   = "filter"
	OpLogin    = "login"
	OpRegister = "register"
	OpLogout   = "logout"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeRejected      = "rejected_error"
	ErrorTypeResponse      = "response_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(t string) LogFields {
	if t != "" {
		f[FieldErrorType] = t
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMode adds the storage mode an operation was served by
func (f LogFields) WithMode(mode string) LogFields {
	f[FieldMode] = mode
	return f
}

// WithResource adds resource kind and id
func (f LogFields) WithResource(kind, id string) LogFields {
	f[FieldResource] = kind
	if id != "" {
		f[FieldResourceID] = id
	}
	return f
}

// WithRemoteCall adds outgoing request fields
func (f LogFields) WithRemoteCall(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if statusCode != 0 {
		f[FieldStatusCode] = statusCode
	}
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
