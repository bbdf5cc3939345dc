package ltd2

import "time"

// FirstMatchDate is the timestamp of the earliest match the API holds.
var FirstMatchDate = time.Date(2018, 8, 3, 15, 39, 0, 0, time.UTC)

// Sort fields accepted by the games endpoint
const (
	SortByDate      = "date"
	SortByElo       = "gameElo"
	SortByWave      = "wave"
	SortByQueueType = "queueType"
	SortByLength    = "gameLength"

	SortAscending  = 1
	SortDescending = -1
)

// Queue types accepted by the games endpoint
const (
	QueueNormal  = "Normal"
	QueueClassic = "Classic"
	QueueArcade  = "Arcade"
)

// Game represents one match as returned by the /games endpoint.
// Optional fields are pointers so that an absent value stays distinguishable
// from a zero value all the way to the output tables.
type Game struct {
	ID          string   `json:"_id"`
	Version     *string  `json:"version"`
	Date        string   `json:"date"`
	QueueType   *string  `json:"queueType"`
	EndingWave  *int64   `json:"endingWave"`
	GameLength  *int64   `json:"gameLength"`
	GameElo     *float64 `json:"gameElo"`
	PlayerCount *int64   `json:"playerCount"`
	HumanCount  *int64   `json:"humanCount"`
	KingSpell   *string  `json:"kingSpell"`

	LeftKingPercentHP  []float64 `json:"leftKingPercentHp"`
	RightKingPercentHP []float64 `json:"rightKingPercentHp"`
	SpellChoices       []string  `json:"spellChoices"`

	// Only populated when includeDetails is requested.
	PlayersData []PlayerData `json:"playersData"`
}

// PlayerData represents one participant's record inside a match.
type PlayerData struct {
	PlayerID          string   `json:"playerId"`
	PlayerName        *string  `json:"playerName"`
	PlayerSlot        *int64   `json:"playerSlot"`
	Legion            *string  `json:"legion"`
	Workers           *float64 `json:"workers"`
	Value             *float64 `json:"value"`
	Cross             *float64 `json:"cross"`
	OverallElo        *float64 `json:"overallElo"`
	StayedUntilEnd    *bool    `json:"stayedUntilEnd"`
	ChosenSpell       *string  `json:"chosenSpell"`
	PartySize         *int64   `json:"partySize"`
	LegionSpecificElo *float64 `json:"legionSpecificElo"`
	MVPScore          *float64 `json:"mvpScore"`
	LeakValue         *float64 `json:"leakValue"`
	LeaksCaughtValue  *float64 `json:"leaksCaughtValue"`
	LeftAtSeconds     *float64 `json:"leftAtSeconds"`

	PartyMembersIDs []string `json:"partyMembersIds"`

	// Comma-separated lists ("unit_a, unit_b, ...")
	Fighters string `json:"fighters"`
	Rolls    string `json:"rolls"`

	// Per-wave sections; the outer index is the wave (0-based here, 1-based
	// in the output tables). All of these may be absent.
	KingUpgradesPerWave        [][]string `json:"kingUpgradesPerWave"`
	NetWorthPerWave            []float64  `json:"netWorthPerWave"`
	WorkersPerWave             []float64  `json:"workersPerWave"`
	IncomePerWave              []float64  `json:"incomePerWave"`
	MercenariesSentPerWave     [][]string `json:"mercenariesSentPerWave"`
	MercenariesReceivedPerWave [][]string `json:"mercenariesReceivedPerWave"`
	LeaksPerWave               [][]string `json:"leaksPerWave"`

	// Build snapshots, one list of "unit:x|y[:stacks]" strings per wave.
	BuildPerWave [][]string `json:"buildPerWave"`
}

// gameDateLayouts are the timestamp formats the API has been seen returning.
var gameDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseGameDate parses a match timestamp from the API.
func ParseGameDate(s string) (time.Time, error) {
	var err error
	for _, layout := range gameDateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
