package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/voxel-stream/internal/eventbus"
	"github.com/annel0/voxel-stream/internal/storage"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func main() {
	var (
		dataDir  = flag.String("data", "data", "Каталог BadgerDB с правками чанков")
		command  = flag.String("cmd", "list", "Команда: put, get, list, delete, tail")
		chunk    = flag.String("chunk", "0,0", "Координаты чанка cx,cz")
		column   = flag.String("col", "0,0", "Локальный столбец lx,lz (для put)")
		top      = flag.Int("top", 0, "Верхний Y столбца (для put)")
		depth    = flag.Int("depth", 1, "Толщина столбца; 0 - вырезать столбец (для put)")
		blk      = flag.String("block", "stone", "Тип блока: "+strings.Join(block.Names(), ", "))
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS для tail")
		stream   = flag.String("stream", "VOXEL_EVENTS", "Стрим JetStream для tail")
		evTypes  = flag.String("types", "", "Фильтр типов событий для tail (через запятую)")
		duration = flag.Duration("for", 0, "Сколько слушать события (0 - до Ctrl+C)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *command == "tail" {
		if *duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *duration)
			defer cancel()
		}
		if err := tailEvents(ctx, *natsURL, *stream, parseStringList(*evTypes)); err != nil {
			log.Fatalf("Tail failed: %v", err)
		}
		return
	}

	store, err := storage.OpenChunkStore(*dataDir)
	if err != nil {
		log.Fatalf("Не удалось открыть хранилище %s: %v", *dataDir, err)
	}
	defer store.Close()

	switch *command {
	case "put":
		err = putColumn(ctx, store, *chunk, *column, *top, *depth, *blk)
	case "get":
		err = showChunk(ctx, store, *chunk)
	case "list":
		err = listChunks(ctx, store)
	case "delete":
		err = deleteChunk(ctx, store, *chunk)
	default:
		fmt.Printf("Unknown command: %s\n", *command)
		fmt.Println("Available commands: put, get, list, delete, tail")
		os.Exit(1)
	}
	if err != nil {
		store.Close()
		log.Fatalf("%s failed: %v", *command, err)
	}
}

// parsePair разбирает строку вида "x,z"
func parsePair(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ожидалось x,z, получено %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("x в %q: %w", s, err)
	}
	z, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("z в %q: %w", s, err)
	}
	return x, z, nil
}

func parseChunk(s string) (vec.ChunkPos, error) {
	x, z, err := parsePair(s)
	return vec.ChunkPos{X: x, Z: z}, err
}

func putColumn(ctx context.Context, store storage.EditStore, chunkArg, colArg string, top, depth int, blockName string) error {
	pos, err := parseChunk(chunkArg)
	if err != nil {
		return err
	}
	lx, lz, err := parsePair(colArg)
	if err != nil {
		return err
	}
	id, err := block.Parse(blockName)
	if err != nil {
		return err
	}

	edit := world.ColumnEdit{LX: lx, LZ: lz, Column: world.Column{Top: top, Depth: depth, Block: id}}
	if err := store.SaveEdits(ctx, pos, []world.ColumnEdit{edit}); err != nil {
		return err
	}
	fmt.Printf("Чанк %s: столбец (%d,%d) = %s top=%d depth=%d\n", pos, lx, lz, id, top, depth)
	return nil
}

func showChunk(ctx context.Context, store storage.EditStore, chunkArg string) error {
	pos, err := parseChunk(chunkArg)
	if err != nil {
		return err
	}
	edits, err := store.LoadEdits(ctx, pos)
	if err != nil {
		return err
	}
	if len(edits) == 0 {
		fmt.Printf("Чанк %s: правок нет\n", pos)
		return nil
	}
	fmt.Printf("Чанк %s: %d правок\n", pos, len(edits))
	for _, e := range edits {
		fmt.Printf("  (%2d,%2d) %-6s top=%d depth=%d\n", e.LX, e.LZ, e.Column.Block, e.Column.Top, e.Column.Depth)
	}
	return nil
}

func listChunks(ctx context.Context, store storage.EditStore) error {
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Чанков с правками: %d\n", len(chunks))
	for _, p := range chunks {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func deleteChunk(ctx context.Context, store storage.EditStore, chunkArg string) error {
	pos, err := parseChunk(chunkArg)
	if err != nil {
		return err
	}
	if err := store.DeleteEdits(ctx, pos); err != nil {
		return err
	}
	fmt.Printf("Правки чанка %s удалены\n", pos)
	return nil
}

// tailEvents выводит события чанков из JetStream в реальном времени
func tailEvents(ctx context.Context, url, stream string, types []string) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("Слушаем события %s (%s)\n", stream, url)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, env *eventbus.Envelope) {
		ev, err := eventbus.DecodeChunkEvent(env)
		if err != nil {
			fmt.Printf("%s %-14s (не удалось разобрать: %v)\n", env.Timestamp.Format(time.RFC3339), env.EventType, err)
			return
		}
		line := fmt.Sprintf("%s %-14s chunk=%s voxels=%d", env.Timestamp.Format(time.RFC3339), env.EventType, ev.Pos, ev.Voxels)
		if ev.Attempts > 0 {
			line += fmt.Sprintf(" attempts=%d", ev.Attempts)
		}
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		fmt.Println(line)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

// parseStringList разбивает строку по запятым
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
