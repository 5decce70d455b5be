// Package balance holds the tuning constants of a battle and the starting loadout.
package balance

// Config carries every tunable number the turn pipeline reads.
type Config struct {
	PDShotsPerTurn        int     `json:"pdShotsPerTurn" yaml:"pd_shots_per_turn" mapstructure:"pdShotsPerTurn"`
	PDRange               int     `json:"pdRange" yaml:"pd_range" mapstructure:"pdRange"`
	CIWSRange             int     `json:"ciwsRange" yaml:"ciws_range" mapstructure:"ciwsRange"`
	CIWSBaseChance        float64 `json:"ciwsBaseChance" yaml:"ciws_base_chance" mapstructure:"ciwsBaseChance"`
	SubsystemDamageChance float64 `json:"subsystemDamageChance" yaml:"subsystem_damage_chance" mapstructure:"subsystemDamageChance"`
	SubsystemDamage       float64 `json:"subsystemDamage" yaml:"subsystem_damage" mapstructure:"subsystemDamage"`
	ArmorDegradationRate  float64 `json:"armorDegradationRate" yaml:"armor_degradation_rate" mapstructure:"armorDegradationRate"`
	AlertShields          float64 `json:"alertShields" yaml:"alert_shields" mapstructure:"alertShields"`
	AlertHull             float64 `json:"alertHull" yaml:"alert_hull" mapstructure:"alertHull"`
	PlayerAccuracy        float64 `json:"playerAccuracy" yaml:"player_accuracy" mapstructure:"playerAccuracy"`
	EnemyAccuracy         float64 `json:"enemyAccuracy" yaml:"enemy_accuracy" mapstructure:"enemyAccuracy"`
	EnemyCrewSkill        float64 `json:"enemyCrewSkill" yaml:"enemy_crew_skill" mapstructure:"enemyCrewSkill"`
	PlayerMissileSpeed    int     `json:"playerMissileSpeed" yaml:"player_missile_speed" mapstructure:"playerMissileSpeed"`
	EnemyMissileSpeed     int     `json:"enemyMissileSpeed" yaml:"enemy_missile_speed" mapstructure:"enemyMissileSpeed"`
	MissileGuidance       float64 `json:"missileGuidance" yaml:"missile_guidance" mapstructure:"missileGuidance"`
	MissileEvasion        float64 `json:"missileEvasion" yaml:"missile_evasion" mapstructure:"missileEvasion"`
	MaxDistance           int     `json:"maxDistance" yaml:"max_distance" mapstructure:"maxDistance"`
}

// Default returns the stock tuning.
func Default() Config {
	return Config{
		PDShotsPerTurn:        2,
		PDRange:               20,
		CIWSRange:             5,
		CIWSBaseChance:        0.7,
		SubsystemDamageChance: 0.3,
		SubsystemDamage:       10,
		ArmorDegradationRate:  1.0,
		AlertShields:          0.3,
		AlertHull:             0.2,
		PlayerAccuracy:        0.8,
		EnemyAccuracy:         0.75,
		EnemyCrewSkill:        80,
		PlayerMissileSpeed:    10,
		EnemyMissileSpeed:     8,
		MissileGuidance:       0.8,
		MissileEvasion:        0.2,
		MaxDistance:           30,
	}
}

// Sanitize replaces non-positive or out-of-range values with the defaults.
func Sanitize(c Config) Config {
	d := Default()
	if c.PDShotsPerTurn < 0 {
		c.PDShotsPerTurn = d.PDShotsPerTurn
	}
	if c.PDRange <= 0 {
		c.PDRange = d.PDRange
	}
	if c.CIWSRange <= 0 {
		c.CIWSRange = d.CIWSRange
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = d.MaxDistance
	}
	if c.PlayerMissileSpeed <= 0 {
		c.PlayerMissileSpeed = d.PlayerMissileSpeed
	}
	if c.EnemyMissileSpeed <= 0 {
		c.EnemyMissileSpeed = d.EnemyMissileSpeed
	}
	if c.SubsystemDamage < 0 {
		c.SubsystemDamage = d.SubsystemDamage
	}
	if c.ArmorDegradationRate < 0 {
		c.ArmorDegradationRate = d.ArmorDegradationRate
	}
	c.CIWSBaseChance = clampUnit(c.CIWSBaseChance)
	c.SubsystemDamageChance = clampUnit(c.SubsystemDamageChance)
	c.AlertShields = clampUnit(c.AlertShields)
	c.AlertHull = clampUnit(c.AlertHull)
	c.PlayerAccuracy = clampUnit(c.PlayerAccuracy)
	c.EnemyAccuracy = clampUnit(c.EnemyAccuracy)
	c.MissileGuidance = clampUnit(c.MissileGuidance)
	c.MissileEvasion = clampUnit(c.MissileEvasion)
	if c.EnemyCrewSkill < 0 {
		c.EnemyCrewSkill = d.EnemyCrewSkill
	}
	c.EnemyCrewSkill = min(c.EnemyCrewSkill, 100)
	return c
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
