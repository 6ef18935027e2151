package responses

// Every endpoint answers with one of two envelopes: data on success, a coded
// error otherwise. Details are populated only for codes that allow them.

type successEnvelope struct {
	Data any `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}
