package types

// ApiType identifies a vendor API. It is the "<provider>" half of a
// "<provider>:<model>" identifier.
type ApiType string

const (
	ApiTypeOpenAI     ApiType = "openai"
	ApiTypeDeepSeek   ApiType = "deepseek"
	ApiTypeOpenRouter ApiType = "openrouter"
	ApiTypeFireworks  ApiType = "fireworks"
	ApiTypeTogether   ApiType = "together"
	ApiTypeDeepInfra  ApiType = "deepinfra"
	ApiTypeGroq       ApiType = "groq"
	ApiTypeGemini     ApiType = "gemini"
	ApiTypeAnthropic  ApiType = "anthropic"
)

// OpenAICompatible lists the providers speaking the OpenAI chat completions wire shape.
var OpenAICompatible = []ApiType{
	ApiTypeOpenAI,
	ApiTypeDeepSeek,
	ApiTypeOpenRouter,
	ApiTypeFireworks,
	ApiTypeTogether,
	ApiTypeDeepInfra,
	ApiTypeGroq,
}

// IsOpenAICompatible reports whether the provider uses the OpenAI chat completions format.
func (a ApiType) IsOpenAICompatible() bool {
	for _, t := range OpenAICompatible {
		if t == a {
			return true
		}
	}
	return false
}

// HasSystemRole reports whether the vendor accepts a system-role turn.
// Anthropic does not, so the system prompt is seeded as a user turn instead.
func (a ApiType) HasSystemRole() bool {
	return a != ApiTypeAnthropic
}

func (a ApiType) String() string {
	return string(a)
}
