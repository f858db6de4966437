package vec

import "fmt"

// Vec3 представляет клетку воксельного мира (целочисленные координаты).
// Ось Y направлена вверх, плоскость XZ горизонтальна.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Базовые смещения.
var (
	Down  = Vec3{Y: -1}
	Up    = Vec3{Y: 1}
	North = Vec3{Z: -1}
	East  = Vec3{X: 1}
	South = Vec3{Z: 1}
	West  = Vec3{X: -1}
)

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Scale умножает вектор на целое число
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Relative возвращает клетку, смещённую на offset*distance.
func (v Vec3) Relative(offset Vec3, distance int) Vec3 {
	return v.Add(offset.Scale(distance))
}

// Below возвращает клетку под текущей.
func (v Vec3) Below() Vec3 {
	return v.Add(Down)
}

// IsZero возвращает true для нулевого вектора.
func (v Vec3) IsZero() bool {
	return v == Vec3{}
}

// Center возвращает центр клетки по горизонтали (нижняя грань по Y).
func (v Vec3) Center() Vec3Float {
	return Vec3Float{X: float64(v.X) + 0.5, Y: float64(v.Y), Z: float64(v.Z) + 0.5}
}

// ManhattanXZ возвращает манхэттенское расстояние в горизонтальной плоскости.
func (v Vec3) ManhattanXZ() int {
	return abs(v.X) + abs(v.Z)
}

// ChunkCoords возвращает координаты чанка 16x16x16, содержащего клетку.
func (v Vec3) ChunkCoords() Vec3 {
	return Vec3{X: v.X >> 4, Y: v.Y >> 4, Z: v.Z >> 4}
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec3) LocalInChunk() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
