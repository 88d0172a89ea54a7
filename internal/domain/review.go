package domain

// HousingID is the closed set of reviewable residences. Each one backs its
// own search index, named by the slug.
type HousingID string

var housingIDs = map[HousingID]struct{}{
	"cary-quad":   {},
	"wiley":       {},
	"earhart":     {},
	"harrison":    {},
	"hillenbrand": {},
	"tarkington":  {},
	"meredith":    {},
	"windsor":     {},
	"hub":         {},
	"rise":        {},
	"chauncey":    {},
	"lark":        {},
}

// ValidHousingID reports whether slug names a known residence.
func ValidHousingID(slug HousingID) bool {
	_, ok := housingIDs[slug]
	return ok
}

// HousingIDs returns every known residence slug.
func HousingIDs() []HousingID {
	out := make([]HousingID, 0, len(housingIDs))
	for id := range housingIDs {
		out = append(out, id)
	}
	return out
}

// Ratings is the five-way rating breakdown. Values are hundredths of a star:
// review submissions carry whole stars (100..500), aggregates carry any value
// in 1..500.
type Ratings struct {
	LivingConditions uint16 `json:"living_conditions" dynamodbav:"living_conditions" validate:"required,min=100,max=500"`
	Location         uint16 `json:"location" dynamodbav:"location" validate:"required,min=100,max=500"`
	Amenities        uint16 `json:"amenities" dynamodbav:"amenities" validate:"required,min=100,max=500"`
	Value            uint16 `json:"value" dynamodbav:"value" validate:"required,min=100,max=500"`
	Community        uint16 `json:"community" dynamodbav:"community" validate:"required,min=100,max=500"`
}

// WholeStars reports whether every component is a multiple of 100, the only
// values a submission form can produce.
func (r Ratings) WholeStars() bool {
	for _, v := range []uint16{r.LivingConditions, r.Location, r.Amenities, r.Value, r.Community} {
		if v%100 != 0 {
			return false
		}
	}
	return true
}

// Review is the persisted review row, keyed by housing slug + review id.
type Review struct {
	HousingID     string  `dynamodbav:"housing_id"`
	ReviewID      string  `dynamodbav:"review_id"`
	OverallRating uint16  `dynamodbav:"overall_rating"`
	Ratings       Ratings `dynamodbav:"ratings"`
	Season        string  `dynamodbav:"semester_season"`
	Year          uint16  `dynamodbav:"semester_year"`
	Description   string  `dynamodbav:"description"`
	ThumbsUp      int64   `dynamodbav:"thumbs_up"`
	ThumbsDown    int64   `dynamodbav:"thumbs_down"`
	CreatedDays   int64   `dynamodbav:"created_date"`
}

// ReviewDoc is the per-housing search document for one review.
type ReviewDoc struct {
	ReviewID      string  `json:"review_id"`
	OverallRating uint16  `json:"overall_rating"`
	Ratings       Ratings `json:"ratings"`
	Season        string  `json:"semester_season"`
	Year          uint16  `json:"semester_year"`
	Description   string  `json:"description"`
	ThumbsUp      int64   `json:"thumbs_up"`
	ThumbsDown    int64   `json:"thumbs_down"`
}

// Doc renders the row into its search document.
func (r Review) Doc() ReviewDoc {
	return ReviewDoc{
		ReviewID:      r.ReviewID,
		OverallRating: r.OverallRating,
		Ratings:       r.Ratings,
		Season:        r.Season,
		Year:          r.Year,
		Description:   r.Description,
		ThumbsUp:      r.ThumbsUp,
		ThumbsDown:    r.ThumbsDown,
	}
}

// ReviewPayload is the creation request.
type ReviewPayload struct {
	HousingID     string  `json:"id" validate:"required"`
	OverallRating uint16  `json:"overall_rating" validate:"required,min=100,max=500"`
	Ratings       Ratings `json:"ratings" validate:"required"`
	Season        string  `json:"semester_season" validate:"required,oneof=Fall Spring Summer"`
	Year          uint16  `json:"semester_year" validate:"required,min=2000,max=2255"`
	Description   string  `json:"description" validate:"required"`
}

// ThumbsPayload applies vote deltas to one review. Deltas are -1, 0 or +1
// per direction; a voter switching sides sends both.
type ThumbsPayload struct {
	HousingID string `json:"id" validate:"required"`
	ReviewID  string `json:"review_id" validate:"required"`
	UpDelta   int8   `json:"up" validate:"min=-1,max=1"`
	DownDelta int8   `json:"down" validate:"min=-1,max=1"`
}

// ThumbsDelta is the update-image projection of a thumbs vote: the new
// absolute counter values carried by the change record.
type ThumbsDelta struct {
	HousingID  string
	ReviewID   string
	ThumbsUp   int64
	ThumbsDown int64
}
