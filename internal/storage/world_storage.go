package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	chunkPrefix = "chunk:"
	floorKey    = "meta:floor"

	// Флаги формата блоба чанка.
	blobRaw  byte = 0
	blobZstd byte = 1
)

// ErrNotReady возвращается после Close.
var ErrNotReady = errors.New("хранилище не готово")

// ErrFloorMismatch — сохранённый мир имеет другой нижний уровень.
var ErrFloorMismatch = errors.New("нижний уровень мира не совпадает с сохранённым")

// WorldStorage представляет собой хранилище данных мира
type WorldStorage struct {
	db       *badger.DB
	dbPath   string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	mutex    sync.RWMutex
	isReady  bool
}

// NewWorldStorage создает новое хранилище мира в dataPath/world.
// compress включает zstd-сжатие блобов чанков.
func NewWorldStorage(dataPath string, compress bool) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:       db,
		dbPath:   dbPath,
		compress: compress,
		enc:      enc,
		dec:      dec,
		isReady:  true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.dec.Close()
	_ = ws.enc.Close()
	return ws.db.Close()
}

func chunkKey(coords vec.Vec3) []byte {
	return []byte(fmt.Sprintf("%s%d:%d:%d", chunkPrefix, coords.X, coords.Y, coords.Z))
}

// encodeChunk упаковывает снимок чанка: байт формата и uint16 LE на клетку.
func (ws *WorldStorage) encodeChunk(flat []block.BlockID) []byte {
	raw := make([]byte, 2*len(flat))
	for i, id := range flat {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(id))
	}
	if !ws.compress {
		return append([]byte{blobRaw}, raw...)
	}
	return ws.enc.EncodeAll(raw, []byte{blobZstd})
}

func (ws *WorldStorage) decodeChunk(blob []byte) ([]block.BlockID, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("пустой блоб чанка")
	}
	raw := blob[1:]
	switch blob[0] {
	case blobRaw:
	case blobZstd:
		var err error
		raw, err = ws.dec.DecodeAll(blob[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
	default:
		return nil, fmt.Errorf("неизвестный формат блоба %d", blob[0])
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("нечётная длина блоба чанка: %d", len(raw))
	}
	flat := make([]block.BlockID, len(raw)/2)
	for i := range flat {
		flat[i] = block.BlockID(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return flat, nil
}

// SaveChunk сохраняет чанк целиком и сбрасывает его изменения.
func (ws *WorldStorage) SaveChunk(chunk *world.Chunk) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	data := ws.encodeChunk(chunk.Snapshot())
	err := ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(chunk.Coords), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	chunk.ResetChanges()
	return nil
}

// LoadChunk загружает чанк. Если чанк не сохранён, возвращает (nil, nil).
func (ws *WorldStorage) LoadChunk(coords vec.Vec3) (*world.Chunk, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var data []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coords))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return ws.chunkFromBlob(coords, data)
}

func (ws *WorldStorage) chunkFromBlob(coords vec.Vec3, data []byte) (*world.Chunk, error) {
	flat, err := ws.decodeChunk(data)
	if err != nil {
		return nil, fmt.Errorf("чанк %v: %w", coords, err)
	}
	chunk := world.NewChunk(coords)
	if !chunk.Restore(flat) {
		return nil, fmt.Errorf("чанк %v: повреждённый снимок (%d блоков)", coords, len(flat))
	}
	return chunk, nil
}

// SaveWorld сохраняет изменённые чанки мира (все, если all) и нижний уровень
// одной транзакцией. Возвращает число записанных чанков.
func (ws *WorldStorage) SaveWorld(w *world.World, all bool) (int, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return 0, ErrNotReady
	}

	chunks := w.DirtyChunks()
	if all {
		chunks = w.Chunks()
	}

	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set([]byte(floorKey), []byte(strconv.Itoa(w.Floor()))); err != nil {
		return 0, fmt.Errorf("ошибка записи уровня мира: %w", err)
	}
	for _, c := range chunks {
		if err := wb.Set(chunkKey(c.Coords), ws.encodeChunk(c.Snapshot())); err != nil {
			return 0, fmt.Errorf("ошибка записи чанка %v: %w", c.Coords, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	for _, c := range chunks {
		c.ResetChanges()
	}
	return len(chunks), nil
}

// LoadWorld загружает все сохранённые чанки в мир. Возвращает число чанков.
func (ws *WorldStorage) LoadWorld(w *world.World) (int, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return 0, ErrNotReady
	}

	loaded := 0
	err := ws.db.View(func(txn *badger.Txn) error {
		if item, err := txn.Get([]byte(floorKey)); err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			floor, err := strconv.Atoi(string(raw))
			if err != nil {
				return fmt.Errorf("повреждён уровень мира: %w", err)
			}
			if floor != w.Floor() {
				return fmt.Errorf("%w: %d != %d", ErrFloorMismatch, floor, w.Floor())
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var coords vec.Vec3
			if _, err := fmt.Sscanf(string(item.Key()), chunkPrefix+"%d:%d:%d", &coords.X, &coords.Y, &coords.Z); err != nil {
				return fmt.Errorf("ошибка парсинга ключа '%s': %w", item.Key(), err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			chunk, err := ws.chunkFromBlob(coords, data)
			if err != nil {
				return err
			}
			w.PutChunk(chunk)
			loaded++
		}
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("ошибка загрузки мира: %w", err)
	}
	return loaded, nil
}
