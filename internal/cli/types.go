package cli

// Document kinds of a method file
const (
	KindService = "Service"
	KindMethod  = "Method"
)

func ValidateKind(kind string) bool {
	switch kind {
	case KindService, KindMethod:
		return true
	default:
		return false
	}
}

// Result formats a method file may declare
const (
	ResultJSON = "json"
	ResultText = "text"
	ResultVoid = "void"
)
