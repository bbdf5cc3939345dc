package flatten

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Catalog holds unit identities and the upgrades tree needed for the
// action-log builds variant.
type Catalog struct {
	ids      map[string]int
	names    []string
	upgrades map[string][]string
	baseOf   map[string]string
}

// NewCatalog builds a catalog from an ordered unit list and an upgrades
// tree mapping each base unit to its upgrade ids.
func NewCatalog(units []string, upgrades map[string][]string) *Catalog {
	c := &Catalog{
		ids:      make(map[string]int, len(units)),
		names:    make([]string, len(units)),
		upgrades: upgrades,
		baseOf:   make(map[string]string),
	}
	for i, u := range units {
		u = strings.ToLower(u)
		c.ids[u] = i
		c.names[i] = u
	}
	for base, ups := range upgrades {
		base = strings.ToLower(base)
		c.baseOf[base] = base
		for _, up := range ups {
			c.baseOf[strings.ToLower(up)] = base
		}
	}
	return c
}

func (c *Catalog) index(name string) (int, bool) {
	i, ok := c.ids[strings.ToLower(name)]
	return i, ok
}

func (c *Catalog) name(i int) string {
	if i < 0 || i >= len(c.names) {
		return ""
	}
	return c.names[i]
}

// BaseUnit returns the root of a unit's upgrade line. A unit outside any
// recorded line is its own base.
func (c *Catalog) BaseUnit(name string) string {
	name = strings.ToLower(name)
	if base, ok := c.baseOf[name]; ok {
		return base
	}
	return name
}

// LoadCatalog reads the unit list from a CSV (with a unitId column) and the
// upgrades tree from JSON.
func LoadCatalog(unitCSV, upgradesJSON io.Reader) (*Catalog, error) {
	r := csv.NewReader(unitCSV)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read unit catalog header: %w", err)
	}
	unitCol := -1
	for i, col := range header {
		if col == "unitId" {
			unitCol = i
			break
		}
	}
	if unitCol < 0 {
		return nil, fmt.Errorf("unit catalog has no unitId column")
	}

	var units []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read unit catalog: %w", err)
		}
		units = append(units, record[unitCol])
	}

	treeBytes, err := io.ReadAll(upgradesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to read upgrades tree: %w", err)
	}
	var upgrades map[string][]string
	if err := json.Unmarshal(treeBytes, &upgrades); err != nil {
		return nil, fmt.Errorf("failed to decode upgrades tree: %w", err)
	}

	return NewCatalog(units, upgrades), nil
}

// FetchCatalog downloads the unit catalog and upgrades tree.
func FetchCatalog(ctx context.Context, hc *http.Client, unitsURL, treeURL string) (*Catalog, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	unitsBody, err := fetchURL(ctx, hc, unitsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unit catalog: %w", err)
	}
	defer unitsBody.Close()

	treeBody, err := fetchURL(ctx, hc, treeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upgrades tree: %w", err)
	}
	defer treeBody.Close()

	return LoadCatalog(unitsBody, treeBody)
}

func fetchURL(ctx context.Context, hc *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}
