package conversation

// User-facing texts.
const (
	MsgNotAuthorized   = "No autorizado."
	MsgPrompt          = "Por favor, digita la cédula que deseas consultar (solo dígitos):"
	MsgInvalidFormat   = "Formato inválido bro. Por favor envía solo dígitos de la cédula."
	MsgCancelled       = "Operación cancelada."
	msgProgress        = "Consultando cédula: %s ..."
	msgConnectionError = "Error de conexión o timeout: %s"
)
