package flatten

import (
	"strconv"
	"strings"

	"ltd2-harvester/internal/ltd2"
)

// The board is addressed in half-tile units: coordinates from the API are
// multiplied by two before indexing.
const (
	boardRows = 28 // y axis
	boardCols = 18 // x axis
	emptyCell = -1
)

// Actions emitted by the action-log builds variant.
const (
	ActionPlaced   = "Placed"
	ActionSold     = "Sold"
	ActionUpgraded = "Upgraded"
)

type board [boardRows][boardCols]int

func newBoard() board {
	var b board
	for y := range b {
		for x := range b[y] {
			b[y][x] = emptyCell
		}
	}
	return b
}

// placeFighters fills a board from one wave's build snapshot. Units missing
// from the catalog (disabled in-game) are skipped.
func placeFighters(b board, builds []string, cat *Catalog, hasStacks bool) board {
	for _, raw := range builds {
		bd, ok := parseBuild(raw, hasStacks)
		if !ok {
			continue
		}
		idx, known := cat.index(bd.fighter)
		if !known {
			continue
		}
		y := int(bd.y * 2)
		x := int(bd.x * 2)
		if y < 0 || y >= boardRows || x < 0 || x >= boardCols {
			continue
		}
		b[y][x] = idx
	}
	return b
}

// boardAction is one step needed to turn the previous wave's board into the
// current one.
type boardAction struct {
	fighter string
	x, y    float64
	action  string
}

// boardDelta computes the actions between two board snapshots: sells first,
// then placements, then in-place replacements. A replacement within the same
// upgrade line is an upgrade; across lines it is a sell plus a placement.
func boardDelta(old, next board, cat *Catalog) []boardAction {
	var actions []boardAction

	for y := 0; y < boardRows; y++ {
		for x := 0; x < boardCols; x++ {
			if old[y][x] != emptyCell && next[y][x] == emptyCell {
				actions = append(actions, boardAction{cat.name(old[y][x]), float64(x) / 2, float64(y) / 2, ActionSold})
			}
		}
	}
	for y := 0; y < boardRows; y++ {
		for x := 0; x < boardCols; x++ {
			if old[y][x] == emptyCell && next[y][x] != emptyCell {
				actions = append(actions, boardAction{cat.name(next[y][x]), float64(x) / 2, float64(y) / 2, ActionPlaced})
			}
		}
	}
	for y := 0; y < boardRows; y++ {
		for x := 0; x < boardCols; x++ {
			prev, cur := old[y][x], next[y][x]
			if prev == emptyCell || cur == emptyCell || prev == cur {
				continue
			}
			fx, fy := float64(x)/2, float64(y)/2
			if cat.BaseUnit(cat.name(prev)) == cat.BaseUnit(cat.name(cur)) {
				actions = append(actions, boardAction{cat.name(cur), fx, fy, ActionUpgraded})
			} else {
				actions = append(actions, boardAction{cat.name(prev), fx, fy, ActionSold})
				actions = append(actions, boardAction{cat.name(cur), fx, fy, ActionPlaced})
			}
		}
	}
	return actions
}

// flattenBuildActions emits the action-log builds variant: the first wave's
// placements verbatim, then per-wave board deltas.
func flattenBuildActions(matchID string, p *ltd2.PlayerData, version float64, d *Dataset, cat *Catalog) {
	if len(p.BuildPerWave) == 0 {
		return
	}
	hasStacks := version >= stacksSinceVersion

	seq := int64(0)
	for _, raw := range p.BuildPerWave[0] {
		b, ok := parseBuild(raw, hasStacks)
		if !ok {
			continue
		}
		if _, known := cat.index(b.fighter); !known {
			continue
		}
		d.Builds.Append(matchID, p.PlayerID, int64(1), b.fighter, b.x, b.y, b.stacks, seq, ActionPlaced)
		seq++
	}

	prev := placeFighters(newBoard(), p.BuildPerWave[0], cat, hasStacks)
	for w, builds := range p.BuildPerWave {
		next := placeFighters(newBoard(), builds, cat, hasStacks)
		for seq, act := range boardDelta(prev, next, cat) {
			var stacks any
			if hasStacks && act.action != ActionSold {
				stacks = lookupStacks(builds, act)
			}
			d.Builds.Append(matchID, p.PlayerID, int64(w+1), act.fighter, act.x, act.y, stacks, int64(seq), act.action)
		}
		prev = next
	}
}

// lookupStacks finds the stack count recorded for a unit at a position in
// the wave's raw build strings.
func lookupStacks(builds []string, act boardAction) any {
	prefix := act.fighter + ":" + formatCoord(act.x) + "|" + formatCoord(act.y) + ":"
	for _, raw := range builds {
		if !strings.HasPrefix(strings.ToLower(raw), prefix) {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) < 3 {
			return nil
		}
		if stacks, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			return stacks
		}
		return nil
	}
	return nil
}

// formatCoord renders a half-tile coordinate the way the API writes it:
// whole values without a decimal point.
func formatCoord(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
