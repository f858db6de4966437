package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/block-gravity/internal/audit"
	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/tick"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/annel0/block-gravity/internal/world/block/implementations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	rs    *RestServer
	world *world.World
	loop  *tick.Loop
	audit *audit.MemoryRepo
}

// newTestServer собирает сервер над миром с каменным полом y = 0 и
// запущенным тиковым циклом.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	w := world.NewWorld(0)
	w.Fill(vec.Vec3{X: -8, Y: 0, Z: -8}, vec.Vec3{X: 8, Y: 0, Z: 8}, block.StoneBlockID)

	loop := tick.NewLoop(2*time.Millisecond, nil)
	reg := prometheus.NewRegistry()

	cfg := gravity.DefaultConfig()
	cfg.World = w
	cfg.Policy = block.MustDefaultPolicy()
	cfg.Scheduler = loop
	cfg.Entities = w.Entities
	cfg.Metrics = gravity.NewMetrics(reg)
	engine, err := gravity.New(cfg)
	require.NoError(t, err)

	w.Entities.SetLandFunc(func(cell vec.Vec3, id block.BlockID) bool {
		return engine.OnFallingBlockLand(cell, id) != gravity.LandingDrop
	})
	loop.ScheduleRecurring(w.Entities.Tick)

	repo := audit.NewMemoryRepo(0)
	rs, err := NewRestServer(Config{
		Engine:     engine,
		World:      w,
		Loop:       loop,
		Audit:      repo,
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	return &testServer{rs: rs, world: w, loop: loop, audit: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.rs.Router().ServeHTTP(w, req)

	var resp GenericResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (ts *testServer) blockAt(t *testing.T, x, y, z int) string {
	t.Helper()
	w, resp := ts.do(t, http.MethodGet, "/api/blocks?x="+itoa(x)+"&y="+itoa(y)+"&z="+itoa(z), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	return data["name"].(string)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func place(x, y, z int, name string) PlaceRequest {
	return PlaceRequest{CellRequest: CellRequest{X: x, Y: y, Z: z}, Block: name}
}

func TestPlace_DeniedWithoutSupport(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 1, 0, "sand"))
	assert.Equal(t, http.StatusOK, w.Code, resp.Message)

	w, _ = ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 6, 0, "sand"))
	assert.Equal(t, http.StatusConflict, w.Code, "Висящий блок отклоняется")
	assert.Equal(t, "air", ts.blockAt(t, 0, 6, 0))

	w, _ = ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 6, 0, "torch"))
	assert.Equal(t, http.StatusOK, w.Code, "Неопорный блок ставится всегда")

	w, _ = ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 1, 0, "stone"))
	assert.Equal(t, http.StatusConflict, w.Code, "Занятая клетка")
}

func TestPlace_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 1, 0, "unobtainium"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/blocks/place", map[string]int{"x": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "Без имени блока")

	w, _ = ts.do(t, http.MethodGet, "/api/blocks?x=1&y=a&z=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/piston/extend", PistonRequest{Direction: "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBreak_CascadeLandsOnFloor(t *testing.T) {
	ts := newTestServer(t)

	for y := 1; y <= 3; y++ {
		w, resp := ts.do(t, http.MethodPost, "/api/blocks/place", place(0, y, 0, "sand"))
		require.Equal(t, http.StatusOK, w.Code, resp.Message)
	}

	w, _ := ts.do(t, http.MethodPost, "/api/blocks/break", CellRequest{X: 0, Y: 1, Z: 0})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return ts.blockAt(t, 0, 1, 0) == "sand" && ts.blockAt(t, 0, 2, 0) == "sand" && ts.blockAt(t, 0, 3, 0) == "air"
	}, 2*time.Second, 10*time.Millisecond, "Столб осыпается на одну клетку")

	require.Eventually(t, func() bool {
		_, resp := ts.do(t, http.MethodGet, "/api/gravity/status", nil)
		st := resp.Data.(map[string]interface{})
		return st["draining"] == false && st["falling_entities"] == float64(0)
	}, 2*time.Second, 10*time.Millisecond, "Каскад и падение завершились")

	w, _ = ts.do(t, http.MethodPost, "/api/blocks/break", CellRequest{X: 5, Y: 5, Z: 5})
	assert.Equal(t, http.StatusNotFound, w.Code, "Пустая клетка")
}

func TestExplode(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/api/explode", ExplodeRequest{CellRequest: CellRequest{X: 0, Y: 0, Z: 0}, Radius: 1})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(5), data["destroyed"], "Крест из пяти клеток пола")
	assert.Equal(t, "air", ts.blockAt(t, 0, 0, 0))

	w, _ = ts.do(t, http.MethodPost, "/api/explode", ExplodeRequest{Radius: maxExplosionRadius + 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPistonExtend_PushesRow(t *testing.T) {
	ts := newTestServer(t)

	for x := 1; x <= 2; x++ {
		w, _ := ts.do(t, http.MethodPost, "/api/blocks/place", place(x, 1, 0, "stone"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := ts.do(t, http.MethodPost, "/api/piston/extend", PistonRequest{CellRequest: CellRequest{X: 0, Y: 1, Z: 0}, Direction: "east"})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["moved"])

	assert.Equal(t, "air", ts.blockAt(t, 1, 1, 0))
	assert.Equal(t, "stone", ts.blockAt(t, 2, 1, 0))
	assert.Equal(t, "stone", ts.blockAt(t, 3, 1, 0))

	w, _ = ts.do(t, http.MethodPost, "/api/piston/retract", PistonRequest{CellRequest: CellRequest{X: 0, Y: 1, Z: 0}, Direction: "east"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPistonExtend_Blocked(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.loop.Call(context.Background(), func() {
		ts.world.Fill(vec.Vec3{X: -8, Y: 1, Z: 0}, vec.Vec3{X: 8, Y: 1, Z: 0}, block.StoneBlockID)
	}))

	w, _ := ts.do(t, http.MethodPost, "/api/piston/extend", PistonRequest{CellRequest: CellRequest{X: -8, Y: 1, Z: 0}, Direction: "east"})
	assert.Equal(t, http.StatusConflict, w.Code, "Больше двенадцати блоков не сдвигается")
	assert.Equal(t, "stone", ts.blockAt(t, -7, 1, 0))
}

func TestIgnite(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodPost, "/api/blocks/place", place(0, 1, 0, "tnt"))
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := ts.do(t, http.MethodPost, "/api/blocks/ignite", CellRequest{X: 0, Y: 1, Z: 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["ignited"])
	assert.Equal(t, "air", ts.blockAt(t, 0, 1, 0))

	_, resp = ts.do(t, http.MethodPost, "/api/blocks/ignite", CellRequest{X: 0, Y: 0, Z: 0})
	assert.Equal(t, false, resp.Data.(map[string]interface{})["ignited"], "Камень не горит")
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	cell := vec.Vec3{X: 1, Y: 2, Z: 3}
	require.NoError(t, ts.audit.Save(ctx, audit.Record{ID: "a", Action: audit.ActionRemoval, Cell: cell, At: time.Now()}))
	require.NoError(t, ts.audit.Save(ctx, audit.Record{ID: "b", Action: audit.ActionDenied, At: time.Now()}))

	w, resp := ts.do(t, http.MethodGet, "/api/audit?x=1&y=2&z=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := resp.Data.([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].(map[string]interface{})["id"])

	w, resp = ts.do(t, http.MethodGet, "/api/audit?action=denied&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	w, _ = ts.do(t, http.MethodGet, "/api/audit?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gravity_api_http_request_duration_seconds")

	ts.loop.Stop()
	<-ts.loop.Done()
	w, _ = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "Остановленный цикл")
}
