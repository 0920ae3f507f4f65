package index

// Posting records how often a term occurs in one document and where.
type Posting struct {
	DocID     string `json:"doc_id"`
	Frequency int    `json:"frequency"`
	Positions []int  `json:"positions,omitempty"`
}

// PostingList is always ordered by DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}
