package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// StoneBehavior реализует блок камня
type StoneBehavior struct{}

// ID возвращает идентификатор блока
func (b *StoneBehavior) ID() block.BlockID {
	return block.StoneBlockID
}

// Name возвращает имя блока
func (b *StoneBehavior) Name() string {
	return "stone"
}

// IsSolid возвращает true, камень сплошной
func (b *StoneBehavior) IsSolid() bool {
	return true
}

// BedrockBehavior — коренная порода. Если её всё же обрушить, она исчезает
// (см. политику vanishing по умолчанию).
type BedrockBehavior struct{}

func (b *BedrockBehavior) ID() block.BlockID { return block.BedrockBlockID }
func (b *BedrockBehavior) Name() string      { return "bedrock" }
func (b *BedrockBehavior) IsSolid() bool     { return true }
