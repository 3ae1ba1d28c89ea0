package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/ceylonroots/tour-admin/internal/duration"
)

// Tour is the root record of a tour aggregate.
type Tour struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Price        float64   `json:"price"`
	Duration     string    `json:"duration"`
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviewsCount"`
	IsHotDeal    bool      `json:"isHotDeal"`
	Tagline      string    `json:"tagline"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TourFields carries the root field values for a create or update call.
// Duration is the canonical string produced by the duration codec.
type TourFields struct {
	Name         string
	Location     string
	Price        float64
	Duration     string
	Rating       float64
	ReviewsCount int
	IsHotDeal    bool
	Tagline      string
	Description  string
}

// ChildItem is an inclusion or exclusion line belonging to one tour.
type ChildItem struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
}

// ItineraryItem is one activity on one day of a tour. Multiple items may
// share a day number.
type ItineraryItem struct {
	ID        uuid.UUID `json:"id"`
	DayNumber int       `json:"dayNumber"`
	Activity  string    `json:"activity"`
}

// TourImage is a stored image reference, ordered by creation.
type TourImage struct {
	ID  uuid.UUID `json:"id"`
	URL string    `json:"url"`
}

// TourAggregate is the root record plus its four child collections. The UI
// treats it as one unit even though the store keeps five resources.
type TourAggregate struct {
	Tour       Tour            `json:"tour"`
	Inclusions []ChildItem     `json:"inclusions"`
	Exclusions []ChildItem     `json:"exclusions"`
	Itinerary  []ItineraryItem `json:"itinerary"`
	Images     []TourImage     `json:"images"`
}

// ChildSnapshot holds the child-record ids captured when an edit session
// begins. It is the only mechanism the synchronizer has for knowing what to
// delete on save, and it is never refreshed while the session is open.
type ChildSnapshot struct {
	Inclusions []uuid.UUID `json:"inclusions"`
	Exclusions []uuid.UUID `json:"exclusions"`
	Itinerary  []uuid.UUID `json:"itinerary"`
	Images     []uuid.UUID `json:"images"`
}

// MediaSourceKind tags the origin of a pending image.
type MediaSourceKind string

const (
	MediaSourceFile MediaSourceKind = "file"
	MediaSourceURL  MediaSourceKind = "url"
)

// MediaSource is one pending image for a tour: either an uploaded binary
// payload or an external URL reference, mutually exclusive.
type MediaSource struct {
	Kind     MediaSourceKind
	URL      string
	FileName string
	MIME     string
	Size     int64
	Data     []byte
}

// DayGroup is the edit buffer's grouping of itinerary activities under a
// free-text day label such as "Day 3".
type DayGroup struct {
	DayLabel   string   `json:"dayLabel"`
	Activities []string `json:"activities"`
}

// TourEditBuffer is the administrator's in-progress view of one tour. It is
// ephemeral: owned by a single edit session, handed to the synchronizer on
// save, and discarded afterwards.
type TourEditBuffer struct {
	Name         string
	Location     string
	Price        float64
	Duration     duration.Value
	Rating       float64
	ReviewsCount int
	IsHotDeal    bool
	Tagline      string
	Description  string
	Inclusions   []string
	Exclusions   []string
	Itinerary    []DayGroup
	Media        []MediaSource
}
