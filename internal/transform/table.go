package transform

var lobbyTypes = map[string]string{
	"0": "public",
	"1": "practice",
	"2": "tournament",
	"3": "tutorial",
	"4": "coop_bot",
	"5": "team_match",
	"6": "solo_queue",
	"7": "ranked",
}

var openDotaMapping = Mapping{
	Match: map[Field]Rule{
		FieldMatchID:   {Path: "match_id"},
		FieldMatchDate: {Path: "start_time"},
		FieldDuration:  {Path: "duration", Unit: UnitSeconds},
		FieldMatchType: {Path: "lobby_type", Lookup: lobbyTypes},
		FieldPlatform:  {Const: "pc"},
	},
	Omit: []string{"picks_bans", "teamfights", "chat", "radiant_gold_adv", "radiant_xp_adv", "cosmetics", "draft_timings"},

	PlayersPath: "players",
	Player: map[Field]Rule{
		FieldPlayerID:   {Path: "account_id", Fallback: "player_slot", Prefix: "opendota_player_"},
		FieldUsername:   {Path: "personaname"},
		FieldPlatformID: {Path: "account_id"},
		FieldKills:      {Path: "kills"},
		FieldDeaths:     {Path: "deaths"},
		FieldAssists:    {Path: "assists"},
		FieldScore:      {Path: "total_gold"},
		FieldRank:       {Path: "rank_tier"},
	},
	PlayerExtra: map[string]string{
		"hero_id":      "hero_id",
		"gold_per_min": "gold_per_min",
		"xp_per_min":   "xp_per_min",
		"last_hits":    "last_hits",
		"denies":       "denies",
		"net_worth":    "net_worth",
		"hero_damage":  "hero_damage",
		"tower_damage": "tower_damage",
	},

	EventsPath: "objectives",
	Event: map[Field]Rule{
		FieldEventType:   {Path: "type"},
		FieldEventOffset: {Path: "time"},
	},
}

// one activity snapshot per game and hour
var steamMapping = Mapping{
	Match: map[Field]Rule{
		FieldMatchID:   {Path: "snapshot_id"},
		FieldMatchDate: {Path: "captured_at"},
		FieldDuration:  {Const: "0", Unit: UnitMinutes},
		FieldMatchType: {Path: "type", Const: "activity_snapshot"},
		FieldPlatform:  {Const: "steam"},
	},
}

var riotPlayer = map[Field]Rule{
	FieldPlayerID:   {Path: "puuid", Prefix: "riot_player_"},
	FieldUsername:   {Path: "gameName"},
	FieldPlatformID: {Path: "puuid"},
	FieldKills:      {Path: "stats.kills"},
	FieldDeaths:     {Path: "stats.deaths"},
	FieldAssists:    {Path: "stats.assists"},
	FieldScore:      {Path: "stats.score"},
	FieldRank:       {Path: "competitiveTier"},
}

var riotMapping = Mapping{
	Match: map[Field]Rule{
		FieldMatchID:   {Path: "matchInfo.matchId"},
		FieldMatchDate: {Path: "matchInfo.gameStartMillis", Epoch: EpochMillis},
		FieldDuration:  {Path: "matchInfo.gameLengthMillis", Unit: UnitMillis},
		FieldMatchType: {Path: "matchInfo.queueId"},
		FieldPlatform:  {Const: "pc"},
	},
	Extra: map[string]string{
		"map_id":    "matchInfo.mapId",
		"season_id": "matchInfo.seasonId",
		"region":    "matchInfo.region",
		"is_ranked": "matchInfo.isRanked",
	},
	Omit: []string{"matchInfo", "teams", "roundResults", "coaches"},

	PlayersPath: "players",
	Player:      riotPlayer,
	PlayerExtra: map[string]string{
		"character_id":  "characterId",
		"team_id":       "teamId",
		"rounds_played": "stats.roundsPlayed",
		"tag":           "tagLine",
	},
}

var henrikDevMapping = Mapping{
	Match: map[Field]Rule{
		FieldMatchID:   {Path: "metadata.match_id"},
		FieldMatchDate: {Path: "metadata.started_at"},
		FieldDuration:  {Path: "metadata.game_length_in_ms", Unit: UnitMillis},
		FieldMatchType: {Path: "metadata.queue.id"},
		FieldPlatform:  {Path: "metadata.platform", Const: "pc"},
	},
	Extra: map[string]string{
		"map":     "metadata.map.name",
		"season":  "metadata.season.short",
		"region":  "metadata.region",
		"cluster": "metadata.cluster",
		"version": "metadata.game_version",
	},
	Omit: []string{"metadata", "teams", "rounds", "kills", "observers", "coaches"},

	PlayersPath: "players",
	Player: map[Field]Rule{
		// same namespace as riot so both sources converge on one player row
		FieldPlayerID:   {Path: "puuid", Prefix: "riot_player_"},
		FieldUsername:   {Path: "name"},
		FieldPlatformID: {Path: "puuid"},
		FieldKills:      {Path: "stats.kills"},
		FieldDeaths:     {Path: "stats.deaths"},
		FieldAssists:    {Path: "stats.assists"},
		FieldScore:      {Path: "stats.score"},
		FieldRank:       {Path: "tier.id"},
	},
	PlayerExtra: map[string]string{
		"tag":             "tag",
		"agent":           "agent.name",
		"team_id":         "team_id",
		"damage_dealt":    "stats.damage.dealt",
		"damage_received": "stats.damage.received",
	},
}

// DefaultTable maps every (game, source) pair the extractor can produce.
func DefaultTable() Table {
	return Table{
		{Game: "dota2", Source: "opendota"}:     openDotaMapping,
		{Game: "dota2", Source: "steam"}:        steamMapping,
		{Game: "csgo", Source: "steam"}:         steamMapping,
		{Game: "gta5", Source: "steam"}:         steamMapping,
		{Game: "valorant", Source: "riot"}:      riotMapping,
		{Game: "valorant", Source: "henrikdev"}: henrikDevMapping,
	}
}
