package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonParse    ReasonCode = "parse"
	ReasonProtocol ReasonCode = "protocol"

	ReasonUnknownTool ReasonCode = "unknown_tool"
	ReasonToolArgs    ReasonCode = "tool_args"
	ReasonStore       ReasonCode = "store"

	ReasonStepLimit ReasonCode = "step_limit"

	ReasonConfig    ReasonCode = "config"
	ReasonTransport ReasonCode = "transport"
)
