package generator

import "errors"

var (
	ErrAuth     = errors.New("llm authentication failed")
	ErrQuota    = errors.New("llm quota exhausted")
	ErrSafety   = errors.New("llm blocked the content for safety reasons")
	ErrService  = errors.New("llm service failure")
	ErrContract = errors.New("llm response does not match the variation contract")
)

// UserMessage turns a generation failure into the notice shown to the user.
// Contract violations get the generic notice; the raw payload goes to the log.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "The API key was rejected. Check your credentials configuration."
	case errors.Is(err, ErrQuota):
		return "API usage limit reached. Try again later."
	case errors.Is(err, ErrSafety):
		return "Content blocked by safety policies. Try rephrasing your brief."
	default:
		return "Could not generate copy. Try again."
	}
}
