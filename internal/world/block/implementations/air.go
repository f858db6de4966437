package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// AirBehavior реализует пустой блок (воздух)
type AirBehavior struct{}

func (b *AirBehavior) ID() block.BlockID { return block.AirBlockID }
func (b *AirBehavior) Name() string      { return "air" }
func (b *AirBehavior) IsSolid() bool     { return false }
