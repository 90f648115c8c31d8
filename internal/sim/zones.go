package sim

// Zone and ZoneEdge form the static travel graph. Built once from tuning at
// world construction; never mutated afterwards, so reads need no lock.
type Zone struct {
	ID    string
	Name  string
	Edges []ZoneEdge
}

type ZoneEdge struct {
	ToZoneID      string
	TimeCostTicks uint64
	CashCost      int64
	HeatRisk      int
}

func (z *Zone) edgeTo(toZoneID string) (ZoneEdge, bool) {
	for _, e := range z.Edges {
		if e.ToZoneID == toZoneID {
			return e, true
		}
	}
	return ZoneEdge{}, false
}
