package domain

// Hit is a single ranked passage returned by retrieval. The struct is
// serialized as-is into both the HTTP response and the result cache, so the
// JSON tags are the wire contract. The reranker mutates Rank, and Reranked
// in place.
type Hit struct {
	Rank     int     `json:"rank"`
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
	Title    string  `json:"title,omitempty"`
	URL      string  `json:"url,omitempty"`
	DocID    int64   `json:"doc_id"`
	Chunk    int     `json:"chunk"`
	Reranked bool    `json:"reranked,omitempty"`
}
