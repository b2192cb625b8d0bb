package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldUserID      = "user_id"
	FieldExpenseID   = "expense_id"
	FieldTemplateID  = "template_id"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldDate        = "date"
	FieldMonth       = "month"
	FieldCount       = "count"
)

// Standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentGenerator = "generator"
	ComponentImport    = "import"
	ComponentExport    = "export"
)
