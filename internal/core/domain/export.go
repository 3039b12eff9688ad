package domain

import "time"

// ExportSnapshot is the point-in-time consolidation of one video's
// segmentation and opinion results. Re-exporting replaces it.
type ExportSnapshot struct {
	ExportID         string            `json:"export_id"`
	VideoID          string            `json:"video_id"`
	BoundarySegments []BoundarySegment `json:"boundary_segments"`
	QABlocks         []QABlock         `json:"qa_blocks"`
	Opinions         []OpinionRecord   `json:"opinions"`
	CreatedAt        time.Time         `json:"created_at"`
}

// VideoState is the ledger's record of the transcript a video's stored
// segmentation was derived from.
type VideoState struct {
	VideoID        string    `json:"video_id"`
	Fingerprint    string    `json:"fingerprint"`
	UtteranceCount int       `json:"utterance_count"`
	FirstIndex     int       `json:"first_index"`
	LastIndex      int       `json:"last_index"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StateOf derives the ledger state for a transcript.
func StateOf(t *Transcript) VideoState {
	return VideoState{
		VideoID:        t.VideoID,
		Fingerprint:    t.Fingerprint(),
		UtteranceCount: len(t.Utterances),
		FirstIndex:     t.FirstIndex(),
		LastIndex:      t.LastIndex(),
	}
}
