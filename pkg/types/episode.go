package types

import "time"

// EpisodeStatus tracks the overall lifecycle of a podcast episode.
type EpisodeStatus string

const (
	EpisodeQueued          EpisodeStatus = "queued"
	EpisodeGeneratingAudio EpisodeStatus = "generating_audio"
	EpisodeAddingMusic     EpisodeStatus = "adding_background_music"
	EpisodeProcessingAudio EpisodeStatus = "processing_audio"
	EpisodeCompleted       EpisodeStatus = "completed"
	EpisodeError           EpisodeStatus = "error"
)

// ProcessingStatus tracks only the audio enhancement step, independent of
// the episode's overall status. Raw audio stays usable even when this
// ends in "error".
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingError      ProcessingStatus = "error"
)

// Episode is the persisted record for one podcast episode.
//
// Invariants maintained by the pipeline:
//   - ProcessedAudioURL is set if and only if ProcessingStatus is completed.
//   - ProcessingError is set if and only if ProcessingStatus is error.
type Episode struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	AudioURL           string           `json:"audio_url"`           // raw narration from TTS
	RawAudioURL        string           `json:"raw_audio_url"`       // uncompressed intermediate, if produced
	ProcessedAudioURL  string           `json:"processed_audio_url"` // final enhanced output
	BackgroundMusicURL string           `json:"background_music_url"`
	Status             EpisodeStatus    `json:"status"`
	ProcessingStatus   ProcessingStatus `json:"processing_status"`
	ProcessingError    string           `json:"processing_error,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
