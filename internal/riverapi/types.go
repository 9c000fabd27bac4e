package riverapi

// Locator identifies a target component: appName and distinctName may be
// empty strings on the wire; ModuleName and BeanName are non-empty.
type Locator struct {
	AppName      string
	ModuleName   string
	BeanName     string
	DistinctName string
}

// StatefulLocator is a Locator bound to a server-assigned session, returned
// by a successful open-session invocation.
type StatefulLocator struct {
	Stateless Locator
	SessionID []byte
	Affinity  any
}

// Attachments is the public string-keyed context-data map plus the private
// typed map surfaced to the wire as a single entry under a reserved key.
type Attachments struct {
	ContextData map[string]any
	Private     map[string]any
}

// MethodInvocationRequest is everything the receiver binding supplies for
// one process_invocation call.
type MethodInvocationRequest struct {
	// MethodName and MethodSignature are used for v<3 requests.
	// MethodSignature is an opaque, caller-supplied string.
	MethodName      string
	MethodSignature string

	// MethodLocator replaces MethodName+MethodSignature for v>=3 requests.
	// Its shape is opaque to this core; it is written to the codec stream
	// as a single object.
	MethodLocator any

	Locator     Locator
	Parameters  []any
	Attachments Attachments
}

// OpenSessionRequest is everything open_session supplies.
type OpenSessionRequest struct {
	Locator Locator
}
