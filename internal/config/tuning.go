package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every balance constant the simulation reads. It is loaded
// from a yaml file so operators can rebalance a world without a rebuild.
type Tuning struct {
	StartingCash int64  `yaml:"starting_cash"`
	StartingZone string `yaml:"starting_zone"`

	HeatDecayIdle int    `yaml:"heat_decay_idle"`
	HeatDecayBusy int    `yaml:"heat_decay_busy"`
	DisguiseDecay int    `yaml:"disguise_decay"`
	DisguiseTicks uint64 `yaml:"disguise_ticks"`
	DisguisePrice int64  `yaml:"disguise_price"`

	ArrestThreshold int     `yaml:"arrest_threshold"`
	ArrestBaseProb  float64 `yaml:"arrest_base_prob"`
	ArrestHeatSlope float64 `yaml:"arrest_heat_slope"`
	JailBaseTicks   uint64  `yaml:"jail_base_ticks"`
	JailHeatTicks   uint64  `yaml:"jail_heat_ticks"`

	JailbreakProb    float64 `yaml:"jailbreak_prob"`
	JailbreakHeat    int     `yaml:"jailbreak_heat"`
	JailbreakPenalty uint64  `yaml:"jailbreak_penalty_ticks"`
	BribePerTick     int64   `yaml:"bribe_per_tick"`
	BribeProb        float64 `yaml:"bribe_prob"`

	MarketPriceFloorPct   int    `yaml:"market_price_floor_pct"`
	MarketPriceCeilPct    int    `yaml:"market_price_ceil_pct"`
	MarketPressureDiv     int    `yaml:"market_pressure_div"`
	MarketBleedEveryTicks uint64 `yaml:"market_bleed_every_ticks"`

	FriendDecayEveryTicks uint64 `yaml:"friend_decay_every_ticks"`
	FriendDecayStep       int    `yaml:"friend_decay_step"`
	GiftFriendStep        int    `yaml:"gift_friend_step"`
	MessageFriendStep     int    `yaml:"message_friend_step"`

	GangCreateFee       int64   `yaml:"gang_create_fee"`
	GangBetrayalCut     float64 `yaml:"gang_betrayal_cut"`
	GangBanTicks        uint64  `yaml:"gang_ban_ticks"`
	TerritoryClaimCost  int64   `yaml:"territory_claim_cost"`
	TerritoryIncome     int64   `yaml:"territory_income"`
	TerritoryEveryTicks uint64  `yaml:"territory_every_ticks"`

	CoopDeadlineTicks uint64  `yaml:"coop_deadline_ticks"`
	CoopStake         int64   `yaml:"coop_stake"`
	CoopBaseProb      float64 `yaml:"coop_base_prob"`
	CoopPerMemberProb float64 `yaml:"coop_per_member_prob"`
	CoopPayout        int64   `yaml:"coop_payout"`
	CoopHeat          int     `yaml:"coop_heat"`
	CoopFriendStep    int     `yaml:"coop_friend_step"`

	AttackBaseProb    float64 `yaml:"attack_base_prob"`
	AttackStamina     int     `yaml:"attack_stamina"`
	AttackDamage      int     `yaml:"attack_damage"`
	AttackLootPct     int     `yaml:"attack_loot_pct"`
	AttackHeat        int     `yaml:"attack_heat"`
	HospitalThreshold int     `yaml:"hospital_threshold"`
	HospitalTicks     uint64  `yaml:"hospital_ticks"`

	GambleWinProb    float64 `yaml:"gamble_win_prob"`
	GambleMultiplier int64   `yaml:"gamble_multiplier"`

	RestTicks   uint64 `yaml:"rest_ticks"`
	RestStamina int    `yaml:"rest_stamina"`
	RestHealth  int    `yaml:"rest_health"`

	BountyTTLTicks  uint64 `yaml:"bounty_ttl_ticks"`
	BountyMinAmount int64  `yaml:"bounty_min_amount"`

	UpkeepEveryTicks uint64 `yaml:"upkeep_every_ticks"`
	UpkeepPenaltyRep int    `yaml:"upkeep_penalty_rep"`

	IdempotencyMaxEntries int    `yaml:"idempotency_max_entries"`
	IdempotencyMaxTicks   uint64 `yaml:"idempotency_max_ticks"`

	SnapshotEveryTicks uint64 `yaml:"snapshot_every_ticks"`

	Zones      []ZoneTuning     `yaml:"zones"`
	Edges      []EdgeTuning     `yaml:"edges"`
	Items      []ItemTuning     `yaml:"items"`
	Jobs       []JobTuning      `yaml:"jobs"`
	Crimes     []CrimeTuning    `yaml:"crimes"`
	Properties []PropertyTuning `yaml:"properties"`
}

type ZoneTuning struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type EdgeTuning struct {
	From          string `yaml:"from"`
	To            string `yaml:"to"`
	TimeCostTicks uint64 `yaml:"time_cost_ticks"`
	CashCost      int64  `yaml:"cash_cost"`
	HeatRisk      int    `yaml:"heat_risk"`
}

type ItemTuning struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	BasePrice int64  `yaml:"base_price"`
}

type JobTuning struct {
	ID            string `yaml:"id"`
	ZoneID        string `yaml:"zone_id"`
	Wage          int64  `yaml:"wage"`
	DurationTicks uint64 `yaml:"duration_ticks"`
	StaminaCost   int    `yaml:"stamina_cost"`
}

type CrimeTuning struct {
	Type          string  `yaml:"type"`
	BaseProb      float64 `yaml:"base_prob"`
	Payout        int64   `yaml:"payout"`
	HeatOnSuccess int     `yaml:"heat_on_success"`
	HeatOnFail    int     `yaml:"heat_on_fail"`
	StaminaCost   int     `yaml:"stamina_cost"`
	LayLowTicks   uint64  `yaml:"lay_low_ticks"`
	InjuryProb    float64 `yaml:"injury_prob"`
}

type PropertyTuning struct {
	ID              string `yaml:"id"`
	ZoneID          string `yaml:"zone_id"`
	Price           int64  `yaml:"price"`
	Income          int64  `yaml:"income"`
	Upkeep          int64  `yaml:"upkeep"`
}

// DefaultTuning is the balance sheet a world starts with when no tuning
// file is supplied. Values are the ones the first season shipped with.
func DefaultTuning() Tuning {
	return Tuning{
		StartingCash: 500,
		StartingZone: "downtown",

		HeatDecayIdle: 1,
		HeatDecayBusy: 0,
		DisguiseDecay: 2,
		DisguiseTicks: 120,
		DisguisePrice: 150,

		ArrestThreshold: 60,
		ArrestBaseProb:  0.02,
		ArrestHeatSlope: 0.004,
		JailBaseTicks:   30,
		JailHeatTicks:   1,

		JailbreakProb:    0.25,
		JailbreakHeat:    25,
		JailbreakPenalty: 20,
		BribePerTick:     10,
		BribeProb:        0.6,

		MarketPriceFloorPct:   20,
		MarketPriceCeilPct:    500,
		MarketPressureDiv:     50,
		MarketBleedEveryTicks: 10,

		FriendDecayEveryTicks: 50,
		FriendDecayStep:       1,
		GiftFriendStep:        5,
		MessageFriendStep:     1,

		GangCreateFee:       1000,
		GangBetrayalCut:     0.25,
		GangBanTicks:        200,
		TerritoryClaimCost:  2000,
		TerritoryIncome:     50,
		TerritoryEveryTicks: 20,

		CoopDeadlineTicks: 60,
		CoopStake:         100,
		CoopBaseProb:      0.35,
		CoopPerMemberProb: 0.08,
		CoopPayout:        800,
		CoopHeat:          20,
		CoopFriendStep:    3,

		AttackBaseProb:    0.5,
		AttackStamina:     15,
		AttackDamage:      25,
		AttackLootPct:     10,
		AttackHeat:        15,
		HospitalThreshold: 20,
		HospitalTicks:     25,

		GambleWinProb:    0.45,
		GambleMultiplier: 2,

		RestTicks:   10,
		RestStamina: 40,
		RestHealth:  20,

		BountyTTLTicks:  300,
		BountyMinAmount: 50,

		UpkeepEveryTicks: 50,
		UpkeepPenaltyRep: 5,

		IdempotencyMaxEntries: 512,
		IdempotencyMaxTicks:   10000,

		SnapshotEveryTicks: 60,

		Zones: []ZoneTuning{
			{ID: "downtown", Name: "Downtown"},
			{ID: "docks", Name: "The Docks"},
			{ID: "uptown", Name: "Uptown"},
			{ID: "industrial", Name: "Industrial Belt"},
		},
		Edges: []EdgeTuning{
			{From: "downtown", To: "docks", TimeCostTicks: 3, CashCost: 10, HeatRisk: 2},
			{From: "docks", To: "downtown", TimeCostTicks: 3, CashCost: 10, HeatRisk: 2},
			{From: "downtown", To: "uptown", TimeCostTicks: 2, CashCost: 20, HeatRisk: 0},
			{From: "uptown", To: "downtown", TimeCostTicks: 2, CashCost: 20, HeatRisk: 0},
			{From: "docks", To: "industrial", TimeCostTicks: 4, CashCost: 5, HeatRisk: 4},
			{From: "industrial", To: "docks", TimeCostTicks: 4, CashCost: 5, HeatRisk: 4},
			{From: "downtown", To: "industrial", TimeCostTicks: 5, CashCost: 15, HeatRisk: 3},
			{From: "industrial", To: "downtown", TimeCostTicks: 5, CashCost: 15, HeatRisk: 3},
		},
		Items: []ItemTuning{
			{ID: "meds", Name: "Medkit", BasePrice: 40},
			{ID: "lockpick", Name: "Lockpick", BasePrice: 80},
			{ID: "burner", Name: "Burner Phone", BasePrice: 25},
			{ID: "scrap", Name: "Scrap Metal", BasePrice: 10},
		},
		Jobs: []JobTuning{
			{ID: "courier", ZoneID: "downtown", Wage: 60, DurationTicks: 5, StaminaCost: 10},
			{ID: "dockhand", ZoneID: "docks", Wage: 90, DurationTicks: 8, StaminaCost: 20},
			{ID: "barista", ZoneID: "uptown", Wage: 50, DurationTicks: 4, StaminaCost: 8},
			{ID: "welder", ZoneID: "industrial", Wage: 120, DurationTicks: 10, StaminaCost: 25},
		},
		Crimes: []CrimeTuning{
			{Type: "pickpocket", BaseProb: 0.6, Payout: 80, HeatOnSuccess: 8, HeatOnFail: 12, StaminaCost: 5, LayLowTicks: 2, InjuryProb: 0.05},
			{Type: "burglary", BaseProb: 0.4, Payout: 250, HeatOnSuccess: 15, HeatOnFail: 20, StaminaCost: 15, LayLowTicks: 6, InjuryProb: 0.1},
			{Type: "hijack", BaseProb: 0.25, Payout: 600, HeatOnSuccess: 25, HeatOnFail: 30, StaminaCost: 25, LayLowTicks: 10, InjuryProb: 0.2},
		},
		Properties: []PropertyTuning{
			{ID: "flat_downtown", ZoneID: "downtown", Price: 1500, Income: 20, Upkeep: 10},
			{ID: "warehouse_docks", ZoneID: "docks", Price: 3000, Income: 45, Upkeep: 25},
			{ID: "loft_uptown", ZoneID: "uptown", Price: 5000, Income: 70, Upkeep: 40},
		},
	}
}

func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t := DefaultTuning()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}
