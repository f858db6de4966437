package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/block-gravity/internal/audit"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/gin-gonic/gin"
)

const (
	maxExplosionRadius = 8
	maxPistonPush      = 12
)

// CellRequest адресует одну клетку.
type CellRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (r CellRequest) cell() vec.Vec3 { return vec.Vec3{X: r.X, Y: r.Y, Z: r.Z} }

// PlaceRequest — установка блока по имени.
type PlaceRequest struct {
	CellRequest
	Block string `json:"block" binding:"required"`
}

// ExplodeRequest — взрыв со сферой радиуса Radius.
type ExplodeRequest struct {
	CellRequest
	Radius int `json:"radius" binding:"required,min=1"`
}

// PistonRequest — поршень в клетке и направление его головы.
type PistonRequest struct {
	CellRequest
	Direction string `json:"direction" binding:"required"`
}

// BlockInfo описывает содержимое клетки.
type BlockInfo struct {
	Cell vec.Vec3      `json:"cell"`
	ID   block.BlockID `json:"id"`
	Name string        `json:"name"`
}

var directions = map[string]vec.Vec3{
	"north": vec.North,
	"east":  vec.East,
	"south": vec.South,
	"west":  vec.West,
	"up":    vec.Up,
	"down":  vec.Down,
}

func parseDirection(s string) (vec.Vec3, bool) {
	d, ok := directions[strings.ToLower(s)]
	return d, ok
}

func (rs *RestServer) info(cell vec.Vec3) BlockInfo {
	id := rs.world.KindAt(cell)
	return BlockInfo{Cell: cell, ID: id, Name: block.NameOf(id)}
}

// handleGetBlock: GET /api/blocks?x=&y=&z=
func (rs *RestServer) handleGetBlock(c *gin.Context) {
	var coords [3]int
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(key))
		if err != nil {
			fail(c, http.StatusBadRequest, "Параметр %s должен быть целым числом", key)
			return
		}
		coords[i] = v
	}
	cell := vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}

	var out BlockInfo
	if !rs.onLoop(c, func() { out = rs.info(cell) }) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок", Data: out})
}

// handlePlace ставит блок, если движок не наложил вето. 409 — блоку не на что опереться.
func (rs *RestServer) handlePlace(c *gin.Context) {
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	id, ok := block.ByName(req.Block)
	if !ok {
		fail(c, http.StatusBadRequest, "Неизвестный блок %q", req.Block)
		return
	}
	cell := req.cell()
	if cell.Y < rs.world.Floor() {
		fail(c, http.StatusBadRequest, "Клетка %v ниже уровня мира", cell)
		return
	}

	var placed, occupied bool
	if !rs.onLoop(c, func() {
		if rs.world.KindAt(cell) != block.AirBlockID {
			occupied = true
			return
		}
		if placed = rs.engine.OnBlockPlace(cell, id); placed {
			rs.world.SetBlock(cell, id)
		}
	}) {
		return
	}

	switch {
	case occupied:
		fail(c, http.StatusConflict, "Клетка %v занята", cell)
	case !placed:
		fail(c, http.StatusConflict, "Блоку %s в %v не на что опереться", req.Block, cell)
	default:
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок установлен", Data: BlockInfo{Cell: cell, ID: id, Name: req.Block}})
	}
}

// removeWith очищает клетку и передаёт удаление обработчику движка.
func (rs *RestServer) removeWith(c *gin.Context, notify func(vec.Vec3)) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	cell := req.cell()

	var before BlockInfo
	if !rs.onLoop(c, func() {
		before = rs.info(cell)
		if before.ID == block.AirBlockID {
			return
		}
		rs.world.SetEmpty(cell)
		notify(cell)
	}) {
		return
	}
	if before.ID == block.AirBlockID {
		fail(c, http.StatusNotFound, "Клетка %v пуста", cell)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок удалён", Data: before})
}

func (rs *RestServer) handleBreak(c *gin.Context) { rs.removeWith(c, rs.engine.OnBlockBreak) }
func (rs *RestServer) handleBurn(c *gin.Context)  { rs.removeWith(c, rs.engine.OnBlockBurn) }

// handleIgnite поджигает клетку; динамит исчезает, остальное не меняется.
func (rs *RestServer) handleIgnite(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	cell := req.cell()

	var ignited bool
	if !rs.onLoop(c, func() {
		rs.engine.OnIgnite(cell)
		if ignited = rs.world.KindAt(cell) == block.TNTBlockID; ignited {
			rs.world.SetEmpty(cell)
		}
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Поджог обработан", Data: gin.H{"ignited": ignited}})
}

// handleChange меняет тип блока без разрушения (например, лёд тает в воздух).
func (rs *RestServer) handleChange(c *gin.Context) {
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	id, ok := block.ByName(req.Block)
	if !ok {
		fail(c, http.StatusBadRequest, "Неизвестный блок %q", req.Block)
		return
	}
	cell := req.cell()

	if !rs.onLoop(c, func() {
		rs.world.SetBlock(cell, id)
		rs.engine.OnBlockChanged(cell, id)
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок изменён", Data: BlockInfo{Cell: cell, ID: id, Name: req.Block}})
}

// handleExplode уничтожает непустые клетки в сфере. Сначала очищаются все
// клетки, затем каждая передаётся движку как удаление.
func (rs *RestServer) handleExplode(c *gin.Context) {
	var req ExplodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	if req.Radius > maxExplosionRadius {
		fail(c, http.StatusBadRequest, "Радиус взрыва не больше %d", maxExplosionRadius)
		return
	}
	center := req.cell()
	r := req.Radius

	var destroyed []vec.Vec3
	if !rs.onLoop(c, func() {
		for x := -r; x <= r; x++ {
			for y := -r; y <= r; y++ {
				for z := -r; z <= r; z++ {
					if x*x+y*y+z*z > r*r {
						continue
					}
					cell := center.Add(vec.Vec3{X: x, Y: y, Z: z})
					if rs.world.KindAt(cell) != block.AirBlockID {
						destroyed = append(destroyed, cell)
					}
				}
			}
		}
		for _, cell := range destroyed {
			rs.world.SetEmpty(cell)
		}
		rs.engine.OnExplosion(destroyed)
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Взрыв обработан", Data: gin.H{"destroyed": len(destroyed)}})
}

// handlePistonExtend сдвигает ряд блоков перед поршнем на одну клетку.
// Ряд длиннее maxPistonPush блоков не сдвигается (409).
func (rs *RestServer) handlePistonExtend(c *gin.Context) {
	var req PistonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	dir, ok := parseDirection(req.Direction)
	if !ok {
		fail(c, http.StatusBadRequest, "Неизвестное направление %q", req.Direction)
		return
	}
	piston := req.cell()

	moved, blocked := 0, false
	if !rs.onLoop(c, func() {
		for moved < maxPistonPush && rs.world.KindAt(piston.Relative(dir, moved+1)) != block.AirBlockID {
			moved++
		}
		if moved == maxPistonPush && rs.world.KindAt(piston.Relative(dir, moved+1)) != block.AirBlockID {
			blocked = true
			return
		}
		for i := moved; i >= 1; i-- {
			from := piston.Relative(dir, i)
			rs.world.SetBlock(from.Add(dir), rs.world.KindAt(from))
		}
		rs.world.SetEmpty(piston.Relative(dir, 1))
		rs.engine.OnPistonExtend(piston, dir)
	}) {
		return
	}
	if blocked {
		fail(c, http.StatusConflict, "Поршень в %v заблокирован", piston)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Поршень выдвинут", Data: gin.H{"moved": moved}})
}

// handlePistonRetract втягивает голову поршня.
func (rs *RestServer) handlePistonRetract(c *gin.Context) {
	var req PistonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса: %v", err)
		return
	}
	dir, ok := parseDirection(req.Direction)
	if !ok {
		fail(c, http.StatusBadRequest, "Неизвестное направление %q", req.Direction)
		return
	}
	piston := req.cell()

	if !rs.onLoop(c, func() { rs.engine.OnPistonRetract(piston, dir) }) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Поршень втянут"})
}

// StatusResponse — состояние очереди обрушения.
type StatusResponse struct {
	Tick     uint64 `json:"tick"`
	Draining bool   `json:"draining"`
	Pending  int    `json:"pending"`
	Entities int    `json:"falling_entities"`
}

func (rs *RestServer) handleStatus(c *gin.Context) {
	var st StatusResponse
	if !rs.onLoop(c, func() {
		cascade := rs.engine.Cascade()
		st = StatusResponse{
			Tick:     rs.loop.Current(),
			Draining: cascade.Draining(),
			Pending:  cascade.Pending(),
			Entities: rs.world.Entities.Count(),
		}
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Состояние гравитации", Data: st})
}

// handleAudit: GET /api/audit?x=&y=&z=&action=&since=&limit=
func (rs *RestServer) handleAudit(c *gin.Context) {
	if rs.audit == nil {
		fail(c, http.StatusNotFound, "Журнал отключён")
		return
	}

	var q audit.Query
	if c.Query("x") != "" || c.Query("y") != "" || c.Query("z") != "" {
		x, errX := strconv.Atoi(c.Query("x"))
		y, errY := strconv.Atoi(c.Query("y"))
		z, errZ := strconv.Atoi(c.Query("z"))
		if errX != nil || errY != nil || errZ != nil {
			fail(c, http.StatusBadRequest, "Клетка задаётся тремя целыми x, y, z")
			return
		}
		q.Cell = &vec.Vec3{X: x, Y: y, Z: z}
	}
	q.Action = audit.Action(c.Query("action"))
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fail(c, http.StatusBadRequest, "since: ожидается RFC3339")
			return
		}
		q.Since = since
	}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			fail(c, http.StatusBadRequest, "limit: ожидается неотрицательное целое")
			return
		}
		q.Limit = limit
	}

	records, err := rs.audit.List(c.Request.Context(), q)
	if err != nil {
		rs.log.Error("Ошибка чтения журнала: %v", err)
		fail(c, http.StatusInternalServerError, "Ошибка чтения журнала")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Журнал", Data: records})
}
