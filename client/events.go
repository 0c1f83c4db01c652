package client

import "github.com/google/uuid"

// Track identifies which output a progress or completion event refers to.
type Track string

const (
	TrackVideo    Track = "video"
	TrackSubtitle Track = "subtitle"
)

// Event is anything emitted on a download's event channel. Events arrive in
// order and the channel is closed after the terminal Completed or Failed
// event. The producer blocks until each event is consumed, so a slow reader
// throttles the download rather than losing events.
type Event interface {
	// DownloadID identifies the download the event belongs to.
	DownloadID() uuid.UUID
}

type baseEvent struct {
	ID uuid.UUID
}

func (e baseEvent) DownloadID() uuid.UUID { return e.ID }

// Started is emitted once, before the manifest is fetched.
type Started struct {
	baseEvent
	URL string
}

// Resolved is emitted after manifest classification and variant selection.
type Resolved struct {
	baseEvent
	// VariantURL is the media playlist that will be downloaded.
	VariantURL string
	// Segments is the number of segments in the fetch plan; 0 for a direct
	// asset download.
	Segments int
	// EstimatedBytes approximates the total size, 0 when unknown.
	EstimatedBytes int64
	// HasSubtitle reports whether a subtitle track was selected.
	HasSubtitle bool
}

// TrackProgress is emitted after each segment of a track is written.
type TrackProgress struct {
	baseEvent
	Track     Track
	Completed int
	Total     int
}

// TrackCompleted is emitted when one track's output file is fully written.
type TrackCompleted struct {
	baseEvent
	Track Track
	Path  string
}

// Completed is the terminal success event.
type Completed struct {
	baseEvent
	Result Result
}

// Failed is the terminal failure event.
type Failed struct {
	baseEvent
	Err error
}
