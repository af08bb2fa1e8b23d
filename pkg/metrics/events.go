package metrics

// Event names emitted by the agent loop, tool registry and model adapters.
const (
	EventTurnStarted   = "turn_started"
	EventTurnCompleted = "turn_completed"
	EventTurnFailed    = "turn_failed"

	EventLLMRequest  = "llm_request"
	EventLLMResponse = "llm_response"
	EventLLMUsage    = "llm_usage"
	EventLLMError    = "llm_error"

	EventEnvelopeParsed = "envelope_parsed"
	EventParseError     = "parse_error"
	EventStepLimit      = "step_limit"

	EventToolCall  = "tool_call"
	EventToolError = "tool_error"

	EventStateChange = "state_change"

	EventRateLimit     = "llm_rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
)
