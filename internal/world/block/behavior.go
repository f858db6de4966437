package block

// BlockBehavior определяет свойства типа блока, важные для гравитации.
// Политика (какие блоки отрываются, какие исчезают при падении) задаётся
// отдельно через Policy.
type BlockBehavior interface {
	ID() BlockID
	Name() string
	// IsSolid возвращает true, если блок занимает клетку целиком и может
	// служить опорой.
	IsSolid() bool
}
