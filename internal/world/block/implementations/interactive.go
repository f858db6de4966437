package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// DoorBehavior — деревянная дверь. Сплошная, но отрывается при потере
// основания, поэтому по умолчанию входит в список detachable.
type DoorBehavior struct{}

func (b *DoorBehavior) ID() block.BlockID { return block.DoorBlockID }
func (b *DoorBehavior) Name() string      { return "oak_door" }
func (b *DoorBehavior) IsSolid() bool     { return true }

type IronDoorBehavior struct{}

func (b *IronDoorBehavior) ID() block.BlockID { return block.IronDoorBlockID }
func (b *IronDoorBehavior) Name() string      { return "iron_door" }
func (b *IronDoorBehavior) IsSolid() bool     { return true }

// TNTBehavior — динамит. Поджог обрабатывается слушателем как удаление блока.
type TNTBehavior struct{}

func (b *TNTBehavior) ID() block.BlockID { return block.TNTBlockID }
func (b *TNTBehavior) Name() string      { return "tnt" }
func (b *TNTBehavior) IsSolid() bool     { return true }

// TorchBehavior — факел, не является сплошным.
type TorchBehavior struct{}

func (b *TorchBehavior) ID() block.BlockID { return block.TorchBlockID }
func (b *TorchBehavior) Name() string      { return "torch" }
func (b *TorchBehavior) IsSolid() bool     { return false }
