package domain

import "time"

// ItemType, Condition, CampusLocation and Emoji are stored as small numeric
// codes. Decoding tolerates unknown codes by falling back to a default so a
// schema drift in the table never halts the projection.

type ItemType uint8

const (
	ItemFurniture ItemType = iota
	ItemElectronics
	ItemBooks
	ItemKitchen
	ItemClothing
	ItemOther
	ItemDecor
)

var itemTypeNames = map[ItemType]string{
	ItemFurniture:   "Furniture",
	ItemElectronics: "Electronics",
	ItemBooks:       "Books",
	ItemKitchen:     "Kitchen",
	ItemClothing:    "Clothing",
	ItemOther:       "Other",
	ItemDecor:       "Decor",
}

func (t ItemType) String() string {
	if s, ok := itemTypeNames[t]; ok {
		return s
	}
	return itemTypeNames[ItemOther]
}

// ParseItemType maps a label back to its code.
func ParseItemType(s string) (ItemType, bool) {
	for code, name := range itemTypeNames {
		if name == s {
			return code, true
		}
	}
	return ItemOther, false
}

type Condition uint8

const (
	ConditionExcellent Condition = iota
	ConditionGood
	ConditionFair
)

var conditionNames = map[Condition]string{
	ConditionExcellent: "Excellent",
	ConditionGood:      "Good",
	ConditionFair:      "Fair",
}

func (c Condition) String() string {
	if s, ok := conditionNames[c]; ok {
		return s
	}
	return conditionNames[ConditionFair]
}

func ParseCondition(s string) (Condition, bool) {
	for code, name := range conditionNames {
		if name == s {
			return code, true
		}
	}
	return ConditionFair, false
}

type CampusLocation uint8

const (
	LocCaryQuadEast CampusLocation = iota
	LocWileyHall
	LocHarrisonHall
	LocEarhartHall
	LocHillenbrandHall
	LocThirdStreetSuites
)

var locationNames = map[CampusLocation]string{
	LocCaryQuadEast:      "CaryQuadEast",
	LocWileyHall:         "WileyHall",
	LocHarrisonHall:      "HarrisonHall",
	LocEarhartHall:       "EarhartHall",
	LocHillenbrandHall:   "HillenbrandHall",
	LocThirdStreetSuites: "ThirdStreetSuites",
}

func (l CampusLocation) String() string {
	if s, ok := locationNames[l]; ok {
		return s
	}
	return locationNames[LocCaryQuadEast]
}

func ParseCampusLocation(s string) (CampusLocation, bool) {
	for code, name := range locationNames {
		if name == s {
			return code, true
		}
	}
	return LocCaryQuadEast, false
}

type Emoji uint8

const (
	EmojiChair Emoji = iota
	EmojiSnowflake
	EmojiBooks
	EmojiPan
	EmojiMonitor
	EmojiDecor
)

var emojiNames = map[Emoji]string{
	EmojiChair:     "Chair",
	EmojiSnowflake: "Snowflake",
	EmojiBooks:     "Books",
	EmojiPan:       "Pan",
	EmojiMonitor:   "Monitor",
	EmojiDecor:     "Decor",
}

func (e Emoji) String() string {
	if s, ok := emojiNames[e]; ok {
		return s
	}
	return emojiNames[EmojiBooks]
}

func ParseEmoji(s string) (Emoji, bool) {
	for code, name := range emojiNames {
		if name == s {
			return code, true
		}
	}
	return EmojiBooks, false
}

// Listing is the persisted marketplace row. Enum fields are numeric codes,
// ExpirationDays is days since the Unix epoch, ExpiresAt is the native TTL
// safety net set well past the logical expiry.
type Listing struct {
	ID             string `dynamodbav:"item_id"`
	Type           uint8  `dynamodbav:"item_type"`
	Condition      uint8  `dynamodbav:"condition"`
	Title          string `dynamodbav:"title"`
	Description    string `dynamodbav:"description"`
	Location       uint8  `dynamodbav:"location"`
	Emoji          uint8  `dynamodbav:"emoji"`
	OwnerEmail     string `dynamodbav:"owner_email"`
	ExpirationDays int64  `dynamodbav:"expiration_date"`
	ExpiresAt      int64  `dynamodbav:"expires_at"`
}

// ListingDoc is the search-engine document shape: human-readable labels and
// an ISO expiration date, no owner identity.
type ListingDoc struct {
	ItemID         string `json:"item_id"`
	ItemType       string `json:"item_type"`
	Title          string `json:"title"`
	Condition      string `json:"condition"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	Emoji          string `json:"emoji"`
	ExpirationDate string `json:"expiration_date"`
}

// Doc renders the row into its search document.
func (l Listing) Doc() ListingDoc {
	return ListingDoc{
		ItemID:         l.ID,
		ItemType:       ItemType(l.Type).String(),
		Title:          l.Title,
		Condition:      Condition(l.Condition).String(),
		Location:       CampusLocation(l.Location).String(),
		Description:    l.Description,
		Emoji:          Emoji(l.Emoji).String(),
		ExpirationDate: DayToDate(l.ExpirationDays).Format(time.DateOnly),
	}
}

// ListingPayload is the creation request, with labels instead of codes.
type ListingPayload struct {
	ItemType    string `json:"item_type" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Emoji       string `json:"emoji" validate:"required"`
}

// DateToDay converts a calendar date to days since the Unix epoch.
func DateToDay(t time.Time) int64 {
	return t.UTC().Truncate(24*time.Hour).Unix() / 86400
}

// DayToDate converts days since the Unix epoch back to a UTC date.
func DayToDate(days int64) time.Time {
	return time.Unix(days*86400, 0).UTC()
}
