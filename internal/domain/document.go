package domain

// Document is an ingest request payload. Title and URL are optional metadata
// carried through to every chunk's search payload.
type Document struct {
	ID    int64
	Text  string
	Title string
	URL   string
}
