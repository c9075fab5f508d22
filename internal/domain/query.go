package domain

// Query is a single retrieval request. Immutable for the request lifetime.
type Query struct {
	Text       string
	TopK       int
	WantRerank bool
}
