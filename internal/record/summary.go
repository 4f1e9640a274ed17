package record

// PreviewChars is the number of runes of extracted text kept in a listing preview.
const PreviewChars = 200

// RecordSummary is a record without its full text.
// Used for browse operations (list, recent, search) to reduce data transfer.
type RecordSummary struct {
	ID              int64   `json:"id"`
	Filename        string  `json:"filename"`
	WordCount       int     `json:"word_count"`
	CharacterLength int     `json:"character_length"`
	ContentHash     *string `json:"content_hash"`
	Summary         *string `json:"summary"`
	CreatedAt       int64   `json:"created_at"`

	// Preview is the first PreviewChars runes of the extracted text
	Preview string `json:"preview"`
}

// ToSummary converts a Record to a RecordSummary by truncating the text to a preview.
func (r *Record) ToSummary() RecordSummary {
	return RecordSummary{
		ID:              r.ID,
		Filename:        r.Filename,
		WordCount:       r.WordCount,
		CharacterLength: r.CharacterLength,
		ContentHash:     r.ContentHash,
		Summary:         r.Summary,
		CreatedAt:       r.CreatedAt,
		Preview:         Preview(r.ExtractedText, PreviewChars),
	}
}
