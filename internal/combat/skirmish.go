package combat

import (
	"math"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

// Volley is one exchange of a skirmish
type Volley struct {
	Index           int     `json:"index"`
	Time            float64 `json:"time"`
	PlayerLoss      int     `json:"player_loss"`
	EnemyLoss       int     `json:"enemy_loss"`
	PlayerRemaining int     `json:"player_remaining"`
	EnemyRemaining  int     `json:"enemy_remaining"`
}

// SkirmishResult is the outcome of one fight
type SkirmishResult struct {
	Mode            string   `json:"mode"`
	PlayerStart     int      `json:"player_start"`
	EnemyStart      int      `json:"enemy_start"`
	PlayerRemaining int      `json:"player_remaining"`
	EnemyRemaining  int      `json:"enemy_remaining"`
	Volleys         []Volley `json:"volleys"`
	Duration        float64  `json:"duration"`
}

// Defeated is the number of enemies removed
func (r SkirmishResult) Defeated() int {
	return r.EnemyStart - r.EnemyRemaining
}

// Casualties is the number of player units lost
func (r SkirmishResult) Casualties() int {
	return r.PlayerStart - r.PlayerRemaining
}

// SkirmishSimulator resolves fights by direct subtraction or by capped volleys
type SkirmishSimulator struct {
	tuning config.SkirmishTuning
}

// NewSkirmishSimulator creates a simulator for a tuning
func NewSkirmishSimulator(t config.SkirmishTuning) *SkirmishSimulator {
	return &SkirmishSimulator{tuning: t}
}

// Mode returns the configured resolution model
func (s *SkirmishSimulator) Mode() string {
	if s.tuning.Mode == "" {
		return config.SkirmishSubtract
	}
	return s.tuning.Mode
}

// Resolve fights player against enemy. Both sides finish within [0, start]. src is only
// consulted by the volley model and may be nil.
func (s *SkirmishSimulator) Resolve(player, enemy int, src *engine.Source) SkirmishResult {
	player = max(0, player)
	enemy = max(0, enemy)
	if s.Mode() == config.SkirmishVolley {
		return s.volleys(player, enemy, src)
	}
	return s.subtract(player, enemy)
}

func (s *SkirmishSimulator) subtract(player, enemy int) SkirmishResult {
	res := SkirmishResult{
		Mode:            config.SkirmishSubtract,
		PlayerStart:     player,
		EnemyStart:      enemy,
		PlayerRemaining: max(0, player-enemy),
		EnemyRemaining:  max(0, enemy-player),
	}
	if player > 0 && enemy > 0 {
		res.Duration = s.tuning.VolleySeconds
		res.Volleys = []Volley{{
			Time:            res.Duration,
			PlayerLoss:      player - res.PlayerRemaining,
			EnemyLoss:       enemy - res.EnemyRemaining,
			PlayerRemaining: res.PlayerRemaining,
			EnemyRemaining:  res.EnemyRemaining,
		}}
	}
	return res
}

func (s *SkirmishSimulator) volleys(player, enemy int, src *engine.Source) SkirmishResult {
	res := SkirmishResult{Mode: config.SkirmishVolley, PlayerStart: player, EnemyStart: enemy}
	hp := s.tuning.HPPerUnit
	if hp <= 0 {
		hp = 1
	}
	limit := max(1, s.tuning.VolleyCap)

	attackers, defenders := player, enemy
	for attackers > 0 && defenders > 0 && len(res.Volleys) < limit {
		damage := s.tuning.BaseDamage * math.Pow(float64(min(attackers, defenders)), s.tuning.DamageExponent)

		enemyLoss := min(defenders, lossFor(damage, hp, s.jitter(src)))
		playerLoss := min(attackers, lossFor(damage, hp, s.jitter(src)))
		defenders -= enemyLoss
		attackers -= playerLoss
		res.Duration += s.tuning.VolleySeconds

		res.Volleys = append(res.Volleys, Volley{
			Index:           len(res.Volleys),
			Time:            res.Duration,
			PlayerLoss:      playerLoss,
			EnemyLoss:       enemyLoss,
			PlayerRemaining: attackers,
			EnemyRemaining:  defenders,
		})
	}
	res.PlayerRemaining = attackers
	res.EnemyRemaining = defenders
	return res
}

func (s *SkirmishSimulator) jitter(src *engine.Source) float64 {
	if src == nil {
		return 0
	}
	return src.Next() * s.tuning.Jitter
}

// lossFor converts damage to whole casualties; at least one unit falls per volley
func lossFor(damage, hp, jitter float64) int {
	v := math.Ceil(damage/hp + jitter)
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
