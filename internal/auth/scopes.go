package auth

// Scopes understood by the biastrack API.
const (
	ScopeRecordsRead  = "records:read"
	ScopeRecordsWrite = "records:write"
)
