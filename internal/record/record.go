package record

// Record is one processed PDF stored in the pdf_extracts table.
type Record struct {
	// ID is the store-assigned integer id
	ID int64 `json:"id"`

	// Filename is the original file name as submitted
	Filename string `json:"filename"`

	// ExtractedText is the concatenated OCR text of all pages
	ExtractedText string `json:"extracted_text"`

	// WordCount is the number of whitespace-delimited tokens in ExtractedText
	WordCount int `json:"word_count"`

	// CharacterLength is the rune length of ExtractedText
	CharacterLength int `json:"character_length"`

	// ContentHash is the hex digest of the file bytes (nullable for rows that predate hashing)
	ContentHash *string `json:"content_hash"`

	// Summary is the LLM summary (nullable until generated)
	Summary *string `json:"summary"`

	// CreatedAt is the Unix timestamp when the record was inserted
	CreatedAt int64 `json:"created_at"`
}

// HasSummary reports whether a non-empty summary is stored.
func (r *Record) HasSummary() bool {
	return r.Summary != nil && *r.Summary != ""
}

// Stats are aggregate totals over all records.
type Stats struct {
	TotalRecords    int64 `json:"total_records"`
	TotalWords      int64 `json:"total_words"`
	TotalCharacters int64 `json:"total_characters"`
}
