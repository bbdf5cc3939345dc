package flatten

import (
	"fmt"

	"ltd2-harvester/internal/table"
)

// Table names, which double as the CSV file basenames.
const (
	TableMatches       = "matches"
	TableSpellChoices  = "spell_choices"
	TableKingsHPs      = "kings_hps"
	TablePlayers       = "players"
	TableParties       = "parties"
	TableFighters      = "fighters"
	TableRolls         = "rolls"
	TableKingsUpgrades = "kings_upgrades"
	TablePlayerWaves   = "player_waves"
	TableMercenaries   = "mercenaries"
	TableLeaks         = "leaks"
	TableBuilds        = "builds"
)

const (
	maxRosterSlots = 30
	maxPartySlots  = 8
	spellSlots     = 3
)

// Options controls how matches are decomposed.
type Options struct {
	// IncludeDetails mirrors the API flag: without it only the matches,
	// spell_choices and kings_hps tables are produced.
	IncludeDetails bool

	// ActionLog switches the builds table from full per-wave placement
	// snapshots to a board-delta action log (Placed/Sold/Upgraded rows).
	// Requires a Catalog.
	ActionLog bool

	// Catalog supplies unit identities and the upgrades tree for the
	// action-log variant.
	Catalog *Catalog
}

// Dataset holds the twelve output tables for a batch of matches.
type Dataset struct {
	Matches       *table.Table
	SpellChoices  *table.Table
	KingsHPs      *table.Table
	Players       *table.Table
	Parties       *table.Table
	Fighters      *table.Table
	Rolls         *table.Table
	KingsUpgrades *table.Table
	PlayerWaves   *table.Table
	Mercenaries   *table.Table
	Leaks         *table.Table
	Builds        *table.Table

	includeDetails bool
}

// NewDataset creates an empty dataset with the fixed table schemas.
func NewDataset(opts Options) *Dataset {
	fighterCols := []string{"_id", "playerId"}
	rollCols := []string{"_id", "playerId"}
	for i := 1; i <= maxRosterSlots; i++ {
		fighterCols = append(fighterCols, fmt.Sprintf("fighter_%d", i))
		rollCols = append(rollCols, fmt.Sprintf("roll_%d", i))
	}
	partyCols := []string{"_id"}
	for i := 1; i <= maxPartySlots; i++ {
		partyCols = append(partyCols, fmt.Sprintf("member_%d", i))
	}

	buildCols := []string{"_id", "playerId", "wave", "fighter", "x", "y", "stacks", "seq_num"}
	if opts.ActionLog {
		buildCols = append(buildCols, "action")
	}

	return &Dataset{
		Matches: table.New(TableMatches,
			"_id", "version", "date", "queueType", "endingWave", "gameLength",
			"gameElo", "playerCount", "humanCount", "kingSpell", "side_won"),
		SpellChoices: table.New(TableSpellChoices, "_id", "choice_1", "choice_2", "choice_3"),
		KingsHPs:     table.New(TableKingsHPs, "_id", "wave", "left_hp", "right_hp"),
		Players: table.New(TablePlayers,
			"_id", "playerId", "playerName", "playerSlot", "legion", "workers",
			"value", "cross", "overallElo", "stayedUntilEnd", "chosenSpell",
			"partySize", "legionSpecificElo", "mvpScore", "leakValue",
			"leaksCaughtValue", "leftAtSeconds"),
		Parties:       table.New(TableParties, partyCols...),
		Fighters:      table.New(TableFighters, fighterCols...),
		Rolls:         table.New(TableRolls, rollCols...),
		KingsUpgrades: table.New(TableKingsUpgrades, "_id", "playerId", "wave", "upgrade", "seq_num"),
		PlayerWaves:   table.New(TablePlayerWaves, "_id", "playerId", "wave", "workers", "income", "networth"),
		Mercenaries:   table.New(TableMercenaries, "_id", "playerId", "received", "wave", "mercenary", "seq_num"),
		Leaks:         table.New(TableLeaks, "_id", "playerId", "wave", "unit", "seq_num"),
		Builds:        table.New(TableBuilds, buildCols...),

		includeDetails: opts.IncludeDetails,
	}
}

// Tables returns the tables in their canonical order. Without details the
// per-player tables are omitted, matching what the API delivers.
func (d *Dataset) Tables() []*table.Table {
	tables := []*table.Table{d.Matches, d.SpellChoices, d.KingsHPs}
	if d.includeDetails {
		tables = append(tables,
			d.Players, d.Parties, d.Fighters, d.Rolls, d.KingsUpgrades,
			d.PlayerWaves, d.Mercenaries, d.Leaks, d.Builds)
	}
	return tables
}

// Merge moves all rows from other into d.
func (d *Dataset) Merge(other *Dataset) error {
	src := other.Tables()
	dst := d.Tables()
	if len(src) != len(dst) {
		return fmt.Errorf("cannot merge datasets with different detail levels")
	}
	for i := range dst {
		if err := dst[i].AppendFrom(src[i]); err != nil {
			return err
		}
	}
	return nil
}

// Reset drops all rows from every table.
func (d *Dataset) Reset() {
	for _, t := range d.Tables() {
		t.Reset()
	}
}

// Len returns the number of match rows in the batch.
func (d *Dataset) Len() int {
	return d.Matches.Len()
}
