package river

import "github.com/riverproto/channel/internal/riverapi"

// Locator identifies a target component: AppName and DistinctName may be
// empty strings on the wire; ModuleName and BeanName are non-empty.
type Locator = riverapi.Locator

// StatefulLocator is a Locator bound to a server-assigned session, returned
// by a successful OpenSession call.
type StatefulLocator = riverapi.StatefulLocator

// Attachments is the public string-keyed context-data map plus the private
// typed map surfaced to the wire as a single entry under a reserved key.
type Attachments = riverapi.Attachments

// MethodInvocationRequest is everything ProcessInvocation needs from the
// higher-level client: a method locator (or name+signature for v<3), a
// target Locator, parameters, and attachments.
type MethodInvocationRequest = riverapi.MethodInvocationRequest

// OpenSessionRequest carries the stateless Locator to open.
type OpenSessionRequest = riverapi.OpenSessionRequest
