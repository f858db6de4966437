package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// DirtBehavior, GrassBehavior, SandBehavior, GravelBehavior — сыпучие и
// почвенные блоки. Все сплошные.
type DirtBehavior struct{}

func (b *DirtBehavior) ID() block.BlockID { return block.DirtBlockID }
func (b *DirtBehavior) Name() string      { return "dirt" }
func (b *DirtBehavior) IsSolid() bool     { return true }

type GrassBehavior struct{}

func (b *GrassBehavior) ID() block.BlockID { return block.GrassBlockID }
func (b *GrassBehavior) Name() string      { return "grass" }
func (b *GrassBehavior) IsSolid() bool     { return true }

type SandBehavior struct{}

func (b *SandBehavior) ID() block.BlockID { return block.SandBlockID }
func (b *SandBehavior) Name() string      { return "sand" }
func (b *SandBehavior) IsSolid() bool     { return true }

type GravelBehavior struct{}

func (b *GravelBehavior) ID() block.BlockID { return block.GravelBlockID }
func (b *GravelBehavior) Name() string      { return "gravel" }
func (b *GravelBehavior) IsSolid() bool     { return true }
