package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldIncomeID   = "income_id"
	FieldCategory   = "category"
	FieldOccurrence = "occurrence"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldFrequency  = "frequency"
)

// Components defines standard component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentReminder = "reminder"
	ComponentReport   = "report"
	ComponentWhatsApp = "whatsapp"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
)
