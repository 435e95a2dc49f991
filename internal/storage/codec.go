package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// ChunkEdits - сохраняемая запись изменений одного чанка
type ChunkEdits struct {
	Coords  vec.ChunkPos       `json:"coords"`
	Columns []world.ColumnEdit `json:"columns"`
}

// Codec кодирует записи в JSON и сжимает их zstd.
// Encoder/Decoder из zstd безопасны для конкурентного EncodeAll/DecodeAll.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec создаёт кодек
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Encode сериализует и сжимает запись
func (c *Codec) Encode(e *ChunkEdits) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации изменений: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

// Decode распаковывает и десериализует запись
func (c *Codec) Decode(data []byte) (*ChunkEdits, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки изменений: %w", err)
	}
	var e ChunkEdits
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("ошибка десериализации изменений: %w", err)
	}
	return &e, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

func chunkKey(pos vec.ChunkPos) string {
	return fmt.Sprintf("chunk:%d:%d", pos.X, pos.Z)
}

func parseChunkKey(key string) (vec.ChunkPos, error) {
	var pos vec.ChunkPos
	if _, err := fmt.Sscanf(key, "chunk:%d:%d", &pos.X, &pos.Z); err != nil {
		return pos, fmt.Errorf("некорректный ключ %q: %w", key, err)
	}
	return pos, nil
}

// mergeEdits заменяет изменения с совпадающими (lx, lz), остальные добавляет
func mergeEdits(existing, updates []world.ColumnEdit) []world.ColumnEdit {
	index := make(map[[2]int]int, len(existing))
	out := make([]world.ColumnEdit, len(existing), len(existing)+len(updates))
	copy(out, existing)
	for i, e := range out {
		index[[2]int{e.LX, e.LZ}] = i
	}
	for _, u := range updates {
		k := [2]int{u.LX, u.LZ}
		if i, ok := index[k]; ok {
			out[i] = u
			continue
		}
		index[k] = len(out)
		out = append(out, u)
	}
	return out
}
