package storage

import (
	"os"
	"testing"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/annel0/block-gravity/internal/world/block/implementations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T, compress bool) (*WorldStorage, string) {
	// Создаем временную директорию для тестов
	tempDir, err := os.MkdirTemp("", "world-storage-test")
	if err != nil {
		t.Fatalf("Не удалось создать временную директорию: %v", err)
	}

	storage, err := NewWorldStorage(tempDir, compress)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}

	return storage, tempDir
}

func cleanupTestStorage(storage *WorldStorage, tempDir string) {
	if storage != nil {
		storage.Close()
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}

func TestSaveAndLoadChunk(t *testing.T) {
	for _, compress := range []bool{false, true} {
		storage, tempDir := setupTestStorage(t, compress)

		chunk := world.NewChunk(vec.Vec3{X: -2, Y: 0, Z: 5})
		chunk.SetBlock(vec.Vec3{X: 1, Y: 2, Z: 3}, block.SandBlockID)
		chunk.SetBlock(vec.Vec3{X: 15, Y: 15, Z: 15}, block.StoneBlockID)
		require.True(t, chunk.IsDirty())

		require.NoError(t, storage.SaveChunk(chunk), "Ошибка сохранения чанка")
		assert.False(t, chunk.IsDirty(), "После сохранения изменения сброшены")

		loaded, err := storage.LoadChunk(chunk.Coords)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, chunk.Coords, loaded.Coords)
		assert.Equal(t, chunk.Snapshot(), loaded.Snapshot(), "Блоки совпадают (compress=%v)", compress)
		assert.False(t, loaded.IsDirty(), "Загруженный чанк не помечен изменённым")

		cleanupTestStorage(storage, tempDir)
	}
}

func TestLoadMissingChunk(t *testing.T) {
	storage, tempDir := setupTestStorage(t, true)
	defer cleanupTestStorage(storage, tempDir)

	chunk, err := storage.LoadChunk(vec.Vec3{X: 100})
	require.NoError(t, err)
	assert.Nil(t, chunk, "Отсутствующий чанк не ошибка")
}

func TestSaveAndLoadWorld(t *testing.T) {
	storage, tempDir := setupTestStorage(t, true)
	defer cleanupTestStorage(storage, tempDir)

	w := world.NewWorld(0)
	w.Fill(vec.Vec3{X: -3, Y: 0, Z: -3}, vec.Vec3{X: 20, Y: 0, Z: 3}, block.StoneBlockID)
	w.SetBlock(vec.Vec3{X: 0, Y: 17, Z: 0}, block.GravelBlockID)

	n, err := storage.SaveWorld(w, false)
	require.NoError(t, err)
	assert.Equal(t, len(w.Chunks()), n)
	assert.Empty(t, w.DirtyChunks(), "После сохранения грязных чанков нет")

	n, err = storage.SaveWorld(w, false)
	require.NoError(t, err)
	assert.Zero(t, n, "Повторное сохранение ничего не пишет")

	restored := world.NewWorld(0)
	n, err = storage.LoadWorld(restored)
	require.NoError(t, err)
	assert.Equal(t, len(w.Chunks()), n)

	for _, cell := range []vec.Vec3{{X: -3, Y: 0, Z: -3}, {X: 20, Y: 0, Z: 3}, {X: 7, Y: 0, Z: 0}, {X: 0, Y: 17, Z: 0}, {X: 0, Y: 1, Z: 0}} {
		assert.Equal(t, w.KindAt(cell), restored.KindAt(cell), "Клетка %v", cell)
	}
}

func TestLoadWorld_FloorMismatch(t *testing.T) {
	storage, tempDir := setupTestStorage(t, false)
	defer cleanupTestStorage(storage, tempDir)

	w := world.NewWorld(0)
	w.SetBlock(vec.Vec3{}, block.StoneBlockID)
	_, err := storage.SaveWorld(w, true)
	require.NoError(t, err)

	_, err = storage.LoadWorld(world.NewWorld(-64))
	assert.ErrorIs(t, err, ErrFloorMismatch)
}

func TestClosedStorage(t *testing.T) {
	storage, tempDir := setupTestStorage(t, true)
	defer os.RemoveAll(tempDir)

	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close(), "Повторное закрытие безопасно")

	assert.ErrorIs(t, storage.SaveChunk(world.NewChunk(vec.Vec3{})), ErrNotReady)
	_, err := storage.LoadWorld(world.NewWorld(0))
	assert.ErrorIs(t, err, ErrNotReady)
}
