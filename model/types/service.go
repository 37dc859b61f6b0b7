package types

// Service is the contract every capability provider implements. A provider
// exposes one or more named methods with reflect-typed signatures so the
// orchestrator can materialise inputs and outputs without knowing the
// concrete payload types.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

// Artifacts is implemented by handler outputs that produce named artifact
// locators in addition to their payload.
type Artifacts interface {
	Artifacts() map[string]string
}
