package config

import "time"

// Tap game tuning. The client keeps these in sync with the web build.
const (
	// Энергия
	DEFAULT_ENERGY_MAX   = 1000
	DEFAULT_ENERGY_REGEN = 1 // per second, also applied offline
	ENERGY_PER_TAP       = 1

	// Ежедневные бусты (полный бак)
	DAILY_BOOSTS = 3

	// Супер режим
	SUPER_MODE_CHANCE     = 0.05
	SUPER_MODE_MULTIPLIER = 2
	SUPER_MODE_DURATION   = 10 * time.Second

	// Синхронизация с лидербордом
	SYNC_DEBOUNCE = 5 * time.Second

	GAME_STORAGE_KEY = "morentube_clicker_state"
	GAME_EVENT       = "game_state_updated"
)

// CalculateEnergyRegenTime returns seconds until the tank is full.
func CalculateEnergyRegenTime(currentEnergy, maxEnergy int) int {
	if currentEnergy >= maxEnergy {
		return 0
	}
	return (maxEnergy - currentEnergy) / DEFAULT_ENERGY_REGEN
}
