package gravity

import (
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// WorldView — то, что движку нужно от мира.
type WorldView interface {
	KindAt(cell vec.Vec3) block.BlockID
	SetEmpty(cell vec.Vec3)
	Floor() int
}

// SupportChecker отвечает на вопрос «держится ли блок». Все методы чистые:
// они только читают мир. hint — клетка, которую нужно считать пустой
// (блок в ней уже удаляется, но мир ещё не обновлён); nil — без подсказки.
type SupportChecker struct {
	world  WorldView
	policy block.Policy
	topo   Topology
}

// NewSupportChecker создаёт проверяющего и валидирует топологию.
func NewSupportChecker(world WorldView, policy block.Policy, topo Topology) (*SupportChecker, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return &SupportChecker{world: world, policy: policy, topo: topo}, nil
}

// IsSupportive: блок сплошной и не отрывается от основания.
func (s *SupportChecker) IsSupportive(kind block.BlockID) bool {
	return s.policy.IsSupportive(kind)
}

// IsSupported — прямая опора: клетка снизу может держать вес.
func (s *SupportChecker) IsSupported(cell vec.Vec3, hint *vec.Vec3) bool {
	below := cell.Below()
	if isHint(below, hint) {
		return false
	}
	return s.IsSupportive(s.world.KindAt(below))
}

// IsSupportedByNeighbors — боковая опора: опирающийся сам на что-то сплошной
// сосед на расстоянии до Reach по направлению или диагональный помощник на
// расстоянии 1.
func (s *SupportChecker) IsSupportedByNeighbors(cell vec.Vec3, hint *vec.Vec3) bool {
	for _, dir := range s.topo.Directions {
		if s.supportedFrom(cell, dir, hint) {
			return true
		}
	}
	return false
}

// CanStand = IsSupported || IsSupportedByNeighbors.
func (s *SupportChecker) CanStand(cell vec.Vec3, hint *vec.Vec3) bool {
	return s.IsSupported(cell, hint) || s.IsSupportedByNeighbors(cell, hint)
}

func (s *SupportChecker) supportedFrom(cell vec.Vec3, dir SupportDirection, hint *vec.Vec3) bool {
	for d := 1; d <= s.topo.Reach; d++ {
		n := cell.Relative(dir.Primary, d)
		// Разрушаемая клетка обрывает направление целиком
		if isHint(n, hint) {
			return false
		}
		if s.bears(n, hint) {
			return true
		}
		if d == 1 {
			for _, a := range dir.Assists {
				c := cell.Add(a)
				if isHint(c, hint) {
					continue
				}
				if s.bears(c, hint) {
					return true
				}
			}
		}
	}
	return false
}

// bears: клетка сплошная, может быть опорой и сама стоит на опоре.
func (s *SupportChecker) bears(cell vec.Vec3, hint *vec.Vec3) bool {
	return s.IsSupportive(s.world.KindAt(cell)) && s.IsSupported(cell, hint)
}

func isHint(cell vec.Vec3, hint *vec.Vec3) bool {
	return hint != nil && *hint == cell
}
