package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldChatID    = "chat_id"
	FieldSender    = "sender"
	FieldCommand   = "command"
	FieldPeriod    = "period"
	FieldRow       = "row"
	FieldPayer     = "payer"
	FieldAmount    = "amount"
	FieldRecord    = "record_description"
	FieldEvent     = "event"
	FieldQueue     = "queue"
	FieldExchange  = "exchange"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldDuration  = "duration_ms"
	FieldSuccess   = "success"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentAssistant = "assistant"
	ComponentLedger    = "ledger"
	ComponentPeriod    = "period"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentStorage   = "storage"
	ComponentRender    = "render"
)

// Operations defines standard operation names
const (
	OpAppend   = "append"
	OpUndo     = "undo"
	OpSummary  = "summary"
	OpRollover = "rollover"
	OpArchive  = "archive"
	OpParse    = "parse"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
