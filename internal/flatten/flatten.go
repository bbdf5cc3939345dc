// Package flatten decomposes nested match records from the games API into
// the twelve flat output tables.
package flatten

import (
	"fmt"
	"strconv"
	"strings"

	"ltd2-harvester/internal/ltd2"
)

// Flatten decomposes one match into the dataset's tables. Absent optional
// sections produce zero rows; only a missing match id or timestamp is an
// error. Sequence numbers are dense and 0-based within each
// (match, player, wave) group, following input order.
func Flatten(g *ltd2.Game, d *Dataset, opts Options) error {
	if g.ID == "" || g.Date == "" {
		return fmt.Errorf("match missing _id or date: %w", ltd2.ErrMalformedResponse)
	}

	d.Matches.Append(
		g.ID, opt(g.Version), g.Date, opt(g.QueueType), opt(g.EndingWave),
		opt(g.GameLength), opt(g.GameElo), opt(g.PlayerCount), opt(g.HumanCount),
		opt(g.KingSpell), sideWon(g.LeftKingPercentHP))

	spellRow := []any{g.ID, nil, nil, nil}
	for i := 0; i < spellSlots && i < len(g.SpellChoices); i++ {
		spellRow[i+1] = g.SpellChoices[i]
	}
	d.SpellChoices.Append(spellRow...)

	waves := len(g.LeftKingPercentHP)
	if len(g.RightKingPercentHP) < waves {
		waves = len(g.RightKingPercentHP)
	}
	for i := 0; i < waves; i++ {
		d.KingsHPs.Append(g.ID, int64(i+1), g.LeftKingPercentHP[i], g.RightKingPercentHP[i])
	}

	if !opts.IncludeDetails {
		return nil
	}

	version := SimplifyVersion(strDeref(g.Version))
	for i := range g.PlayersData {
		flattenPlayer(g.ID, &g.PlayersData[i], version, d, opts)
	}
	return nil
}

func flattenPlayer(matchID string, p *ltd2.PlayerData, version float64, d *Dataset, opts Options) {
	d.Players.Append(
		matchID, p.PlayerID, opt(p.PlayerName), opt(p.PlayerSlot), opt(p.Legion),
		opt(p.Workers), opt(p.Value), opt(p.Cross), opt(p.OverallElo),
		opt(p.StayedUntilEnd), opt(p.ChosenSpell), opt(p.PartySize),
		opt(p.LegionSpecificElo), opt(p.MVPScore), opt(p.LeakValue),
		opt(p.LeaksCaughtValue), opt(p.LeftAtSeconds))

	// Solo players count as a party of one; only real parties get a row.
	if len(p.PartyMembersIDs) > 1 {
		row := make([]any, maxPartySlots+1)
		row[0] = matchID
		for i := 0; i < maxPartySlots; i++ {
			if i < len(p.PartyMembersIDs) {
				row[i+1] = p.PartyMembersIDs[i]
			}
		}
		d.Parties.Append(row...)
	}

	d.Fighters.Append(rosterRow(matchID, p.PlayerID, p.Fighters)...)
	d.Rolls.Append(rosterRow(matchID, p.PlayerID, p.Rolls)...)

	for w, upgrades := range p.KingUpgradesPerWave {
		for seq, upgrade := range upgrades {
			d.KingsUpgrades.Append(matchID, p.PlayerID, int64(w+1), upgrade, int64(seq))
		}
	}

	economyWaves := len(p.NetWorthPerWave)
	if len(p.WorkersPerWave) < economyWaves {
		economyWaves = len(p.WorkersPerWave)
	}
	if len(p.IncomePerWave) < economyWaves {
		economyWaves = len(p.IncomePerWave)
	}
	for w := 0; w < economyWaves; w++ {
		d.PlayerWaves.Append(matchID, p.PlayerID, int64(w+1),
			p.WorkersPerWave[w], p.IncomePerWave[w], p.NetWorthPerWave[w])
	}

	for w, mercs := range p.MercenariesSentPerWave {
		for seq, merc := range mercs {
			d.Mercenaries.Append(matchID, p.PlayerID, false, int64(w+1), merc, int64(seq))
		}
	}
	for w, mercs := range p.MercenariesReceivedPerWave {
		for seq, merc := range mercs {
			d.Mercenaries.Append(matchID, p.PlayerID, true, int64(w+1), merc, int64(seq))
		}
	}

	for w, leaks := range p.LeaksPerWave {
		for seq, unit := range leaks {
			d.Leaks.Append(matchID, p.PlayerID, int64(w+1), unit, int64(seq))
		}
	}

	if opts.ActionLog && opts.Catalog != nil {
		flattenBuildActions(matchID, p, version, d, opts.Catalog)
	} else {
		flattenBuilds(matchID, p, version, d)
	}
}

// flattenBuilds emits every placement of every wave snapshot.
func flattenBuilds(matchID string, p *ltd2.PlayerData, version float64, d *Dataset) {
	hasStacks := version >= stacksSinceVersion
	for w, builds := range p.BuildPerWave {
		seq := int64(0)
		for _, raw := range builds {
			b, ok := parseBuild(raw, hasStacks)
			if !ok {
				continue
			}
			d.Builds.Append(matchID, p.PlayerID, int64(w+1), b.fighter, b.x, b.y, b.stacks, seq)
			seq++
		}
	}
}

// sideWon derives the winning side from the final left-king HP sample.
// Returns nil when no HP trace was recorded.
func sideWon(leftHP []float64) any {
	if len(leftHP) == 0 {
		return nil
	}
	if leftHP[len(leftHP)-1] == 0 {
		return "right"
	}
	return "left"
}

// rosterRow fills the 30-slot fighter/roll row from a comma-separated list.
func rosterRow(matchID, playerID, list string) []any {
	row := make([]any, maxRosterSlots+2)
	row[0] = matchID
	row[1] = playerID
	if list == "" {
		return row
	}
	for i, entry := range strings.Split(list, ",") {
		if i >= maxRosterSlots {
			break
		}
		row[i+2] = strings.TrimSpace(entry)
	}
	return row
}

// stacksSinceVersion is the patch that added stack counts to build strings.
const stacksSinceVersion = 9.06

// build is one parsed "unit:x|y[:stacks]" entry.
type build struct {
	fighter string
	x, y    float64
	stacks  any // *int64 semantics: nil when the patch predates stacks
}

func parseBuild(raw string, hasStacks bool) (build, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return build{}, false
	}
	coords := strings.Split(parts[1], "|")
	if len(coords) != 2 {
		return build{}, false
	}
	x, errX := strconv.ParseFloat(coords[0], 64)
	y, errY := strconv.ParseFloat(coords[1], 64)
	if errX != nil || errY != nil {
		return build{}, false
	}

	b := build{
		fighter: strings.ToLower(parts[0]),
		x:       x,
		y:       y,
	}
	if hasStacks && len(parts) >= 3 {
		if stacks, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			b.stacks = stacks
		}
	}
	return b, true
}

// SimplifyVersion reduces a patch string to a comparable number,
// e.g. "v9.02b" -> 9.02. Returns 0 for unparseable input.
func SimplifyVersion(version string) float64 {
	version = strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
	parts := strings.SplitN(version, ".", 3)
	if len(parts) >= 2 {
		version = parts[0] + "." + parts[1]
	} else {
		version = parts[0]
	}
	if len(version) > 4 {
		version = version[:4]
	}
	version = strings.TrimRightFunc(version, func(r rune) bool {
		return r < '0' || r > '9'
	})
	v, err := strconv.ParseFloat(version, 64)
	if err != nil {
		return 0
	}
	return v
}

// opt converts a pointer field to a table cell, keeping nil as the null
// marker.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
