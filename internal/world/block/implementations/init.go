package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// Регистрируем все типы блоков при импорте пакета
func init() {
	// Базовые блоки
	block.Register(block.AirBlockID, &AirBehavior{})
	block.Register(block.StoneBlockID, &StoneBehavior{})
	block.Register(block.BedrockBlockID, &BedrockBehavior{})
	block.Register(block.GrassBlockID, &GrassBehavior{})
	block.Register(block.DirtBlockID, &DirtBehavior{})
	block.Register(block.SandBlockID, &SandBehavior{})
	block.Register(block.GravelBlockID, &GravelBehavior{})
	block.Register(block.WaterBlockID, &WaterBehavior{})

	// Дерево
	block.Register(block.LogBlockID, &LogBehavior{})
	block.Register(block.LeavesBlockID, &LeavesBehavior{})
	block.Register(block.PlanksBlockID, &PlanksBehavior{})

	// Интерактивные
	block.Register(block.DoorBlockID, &DoorBehavior{})
	block.Register(block.IronDoorBlockID, &IronDoorBehavior{})
	block.Register(block.TNTBlockID, &TNTBehavior{})
	block.Register(block.TorchBlockID, &TorchBehavior{})
}
