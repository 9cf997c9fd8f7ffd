package constants

// Context Keys
const (
	ContextKeyIdentity = "identity"
	ContextKeyToken    = "token"
)

// HTTP Headers
const (
	HeaderAuthorization    = "Authorization"
	HeaderContentType      = "Content-Type"
	HeaderBrevoSecret      = "X-Brevo-Secret"
	HeaderMessagingSecret  = "X-Messaging-Secret"
	HeaderTypebotSecret    = "X-Typebot-Secret"
	HeaderWordPressSecret  = "X-WordPress-Secret"
	HeaderWebhookSecret    = "X-Webhook-Secret"
	HeaderAsaasAccessToken = "asaas-access-token"
	HeaderAsaasSignature   = "asaas-signature"

	BearerPrefix = "Bearer "
)

// Response Keys
const (
	ResponseError   = "error"
	ResponseMessage = "message"
	ResponseData    = "data"
	ResponseCode    = "code"
)

// Pagination
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Route parameters
const (
	ParamID = "id"
)
