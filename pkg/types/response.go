package types

// SuccessEnvelope wraps every 2xx body. Meta is only set on list responses.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Meta *ListMeta `json:"meta,omitempty"`
}

// ListMeta describes a list body. Total counts rows before any limit was
// applied; Truncated is set when Count < Total.
type ListMeta struct {
	Count     int  `json:"count"`
	Total     int  `json:"total"`
	Truncated bool `json:"truncated,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
