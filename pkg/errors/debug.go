package errors

// Dump flattens an error chain for structured logging.
type Dump struct {
	TopMessage string
	Code       string
	Chain      []string
}

// DumpError walks the chain and records each message for log output.
func DumpError(err error) Dump {
	dump := Dump{}
	if err == nil {
		return dump
	}
	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = string(typed.Code())
	}
	for current := err; current != nil; current = stdUnwrap(current) {
		dump.Chain = append(dump.Chain, current.Error())
	}
	return dump
}

func stdUnwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}
