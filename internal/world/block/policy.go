package block

import (
	"errors"
	"fmt"
)

// ErrUnknownBlock возвращается, если в политике указано незарегистрированное имя.
var ErrUnknownBlock = errors.New("unknown block")

// Policy описывает конфигурируемые свойства материалов:
//   - nonSolid    — блоки, которые считаются несплошными вопреки поведению;
//   - detachable  — сплошные блоки, которые не могут быть опорой (двери);
//   - vanishing   — блоки, которые исчезают вместо падения (бедрок, листва).
type Policy struct {
	nonSolid   map[BlockID]struct{}
	detachable map[BlockID]struct{}
	vanishing  map[BlockID]struct{}
}

// PolicyNames — имена блоков для каждой категории политики.
type PolicyNames struct {
	NonSolid   []string `yaml:"non_solid"`
	Detachable []string `yaml:"detachable"`
	Vanishing  []string `yaml:"vanishing"`
}

// DefaultPolicyNames возвращает политику по умолчанию.
func DefaultPolicyNames() PolicyNames {
	return PolicyNames{
		Detachable: []string{"oak_door", "iron_door"},
		Vanishing:  []string{"bedrock", "leaves"},
	}
}

// NewPolicy строит политику по именам блоков. Неизвестное имя — ошибка
// конфигурации.
func NewPolicy(names PolicyNames) (Policy, error) {
	p := Policy{}
	var err error
	if p.nonSolid, err = resolve(names.NonSolid); err != nil {
		return Policy{}, fmt.Errorf("non_solid: %w", err)
	}
	if p.detachable, err = resolve(names.Detachable); err != nil {
		return Policy{}, fmt.Errorf("detachable: %w", err)
	}
	if p.vanishing, err = resolve(names.Vanishing); err != nil {
		return Policy{}, fmt.Errorf("vanishing: %w", err)
	}
	return p, nil
}

// MustDefaultPolicy возвращает политику по умолчанию и паникует, если
// блоки не зарегистрированы.
func MustDefaultPolicy() Policy {
	p, err := NewPolicy(DefaultPolicyNames())
	if err != nil {
		panic(err)
	}
	return p
}

func resolve(names []string) (map[BlockID]struct{}, error) {
	set := make(map[BlockID]struct{}, len(names))
	for _, name := range names {
		id, ok := ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

// IsEmpty возвращает true для «пустоты».
func (p Policy) IsEmpty(id BlockID) bool {
	return id == AirBlockID
}

// IsSolid возвращает true, если блок сплошной.
func (p Policy) IsSolid(id BlockID) bool {
	if _, ok := p.nonSolid[id]; ok {
		return false
	}
	behavior, ok := Get(id)
	return ok && behavior.IsSolid()
}

// IsDetachable возвращает true для блоков, которые отрываются сущностью
// при потере основания.
func (p Policy) IsDetachable(id BlockID) bool {
	_, ok := p.detachable[id]
	return ok
}

// IsSupportive = IsSolid && !IsDetachable.
func (p Policy) IsSupportive(id BlockID) bool {
	return p.IsSolid(id) && !p.IsDetachable(id)
}

// Vanishes возвращает true, если блок исчезает вместо падения.
func (p Policy) Vanishes(id BlockID) bool {
	_, ok := p.vanishing[id]
	return ok
}
