package block

import (
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[BlockID]BlockBehavior)
	byName     = make(map[string]BlockID)
)

// Register добавляет поведение блока в регистр
func Register(id BlockID, behavior BlockBehavior) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = behavior
	byName[strings.ToLower(behavior.Name())] = id
}

// Get возвращает поведение для указанного ID
func Get(id BlockID) (BlockBehavior, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	behavior, exists := registry[id]
	return behavior, exists
}

// ByName ищет ID блока по имени (без учёта регистра).
func ByName(name string) (BlockID, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	id, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// NameOf возвращает имя блока или "unknown".
func NameOf(id BlockID) string {
	if behavior, ok := Get(id); ok {
		return behavior.Name()
	}
	return "unknown"
}

// Names возвращает отсортированный список зарегистрированных имён.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID     BlockID = iota // 0
	StoneBlockID                  // 1
	GrassBlockID                  // 2
	WaterBlockID                  // 3
	SandBlockID                   // 4
	DirtBlockID                   // 5
	GravelBlockID                 // 6
	BedrockBlockID                // 7

	// Строительные и природные блоки (начиная с 100)
	LogBlockID    BlockID = 100
	LeavesBlockID BlockID = 101
	PlanksBlockID BlockID = 102
	TorchBlockID  BlockID = 103

	// Интерактивные блоки (начиная с 200)
	DoorBlockID     BlockID = 201 // Дверь
	IronDoorBlockID BlockID = 202
	TNTBlockID      BlockID = 203
)
