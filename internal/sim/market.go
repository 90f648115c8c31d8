package sim

import "sync"

// Market tracks per-(zone, item) price pressure. Buys raise demand and push
// the price up; sells are the inverse. Price stays clamped to a band around
// the base price so a cornered market cannot be milked without bound.
type Market struct {
	mu sync.Mutex

	ZoneID          string
	ItemID          string
	BasePrice       int64
	Price           int64
	Supply          int64
	Demand          int64
	LastUpdatedTick uint64
}

func marketKey(zoneID, itemID string) string {
	return zoneID + "/" + itemID
}

// Quote returns the current unit price.
func (m *Market) Quote() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Price
}

// applyBuy charges at the pre-trade price, then moves the price. Caller has
// already debited the agent; this only mutates market state.
func (m *Market) applyBuy(qty int64, tick uint64, floorPct, ceilPct, pressureDiv int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Demand += qty
	m.reprice(tick, floorPct, ceilPct, pressureDiv)
}

func (m *Market) applySell(qty int64, tick uint64, floorPct, ceilPct, pressureDiv int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Supply += qty
	m.reprice(tick, floorPct, ceilPct, pressureDiv)
}

func (m *Market) reprice(tick uint64, floorPct, ceilPct, pressureDiv int) {
	if pressureDiv <= 0 {
		pressureDiv = 50
	}
	pressure := m.Demand - m.Supply
	price := m.BasePrice + m.BasePrice*pressure/int64(pressureDiv)
	floor := m.BasePrice * int64(floorPct) / 100
	ceil := m.BasePrice * int64(ceilPct) / 100
	if floor < 1 {
		floor = 1
	}
	if price < floor {
		price = floor
	}
	if price > ceil {
		price = ceil
	}
	m.Price = price
	m.LastUpdatedTick = tick
}

// bleed relaxes accumulated pressure toward neutral. Runs from the tick
// processor so stale markets drift back to base price.
func (m *Market) bleed(tick uint64, floorPct, ceilPct, pressureDiv int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Supply -= bleedStep(m.Supply)
	m.Demand -= bleedStep(m.Demand)
	m.reprice(tick, floorPct, ceilPct, pressureDiv)
}

func bleedStep(v int64) int64 {
	if v == 0 {
		return 0
	}
	step := v / 10
	if step == 0 {
		if v > 0 {
			step = 1
		} else {
			step = -1
		}
	}
	return step
}

// MarketQuote is the read-model served to clients.
type MarketQuote struct {
	ZoneID    string `json:"zone_id"`
	ItemID    string `json:"item_id"`
	BasePrice int64  `json:"base_price"`
	Price     int64  `json:"price"`
	Supply    int64  `json:"supply"`
	Demand    int64  `json:"demand"`
}

func (m *Market) snapshot() MarketQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MarketQuote{
		ZoneID:    m.ZoneID,
		ItemID:    m.ItemID,
		BasePrice: m.BasePrice,
		Price:     m.Price,
		Supply:    m.Supply,
		Demand:    m.Demand,
	}
}
