package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// LogBehavior, LeavesBehavior, PlanksBehavior — древесные блоки.
// Листва сплошная, но по умолчанию исчезает при обрушении.

type LogBehavior struct{}

func (b *LogBehavior) ID() block.BlockID { return block.LogBlockID }
func (b *LogBehavior) Name() string      { return "log" }
func (b *LogBehavior) IsSolid() bool     { return true }

type LeavesBehavior struct{}

func (b *LeavesBehavior) ID() block.BlockID { return block.LeavesBlockID }
func (b *LeavesBehavior) Name() string      { return "leaves" }
func (b *LeavesBehavior) IsSolid() bool     { return true }

type PlanksBehavior struct{}

func (b *PlanksBehavior) ID() block.BlockID { return block.PlanksBlockID }
func (b *PlanksBehavior) Name() string      { return "planks" }
func (b *PlanksBehavior) IsSolid() bool     { return true }
