package render

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func TestHandleAllocatorMonotonic(t *testing.T) {
	var a HandleAllocator
	h1 := a.Next(vec.Vec3{X: 1}, block.Grass)
	h2 := a.Next(vec.Vec3{X: 2}, block.Stone)

	assert.Equal(t, uint64(1), h1.ID)
	assert.Equal(t, uint64(2), h2.ID)
	assert.Equal(t, block.Stone, h2.Block)
}

func TestGraph(t *testing.T) {
	var a HandleAllocator
	g := NewGraph()

	h1 := a.Next(vec.Vec3{}, block.Grass)
	h2 := a.Next(vec.Vec3{X: 1}, block.Grass)
	g.AddObject(h1)
	g.AddObject(h2)
	g.RenderFrame()

	assert.Equal(t, 2, g.Len())
	assert.True(t, g.Has(h1.ID))
	assert.Equal(t, []Handle{h1, h2}, g.Objects())

	g.RemoveObject(h1)
	g.RemoveObject(h1) // повторное удаление не считается
	g.RenderFrame()

	assert.Equal(t, 1, g.Len())
	assert.False(t, g.Has(h1.ID))
	assert.Equal(t, uint64(2), g.Frames())

	added, removed := g.Totals()
	assert.Equal(t, uint64(2), added)
	assert.Equal(t, uint64(1), removed)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.AddObject(Handle{ID: 1})
	r.RemoveObject(Handle{ID: 1})
	r.RenderFrame()

	added, removed := r.Counts()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Frames)

	r.Reset()
	added, removed = r.Counts()
	assert.Zero(t, added+removed)
}

func dialViewer(t *testing.T, s *WSScene) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) FrameMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg FrameMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSSceneSnapshotAndFrames(t *testing.T) {
	var a HandleAllocator
	s := NewWSScene()
	defer s.Close()

	existing := a.Next(vec.Vec3{X: 5, Y: 0, Z: -3}, block.Sand)
	s.AddObject(existing)
	s.RenderFrame()

	conn := dialViewer(t, s)
	snap := readFrame(t, conn)
	assert.Equal(t, MsgSnapshot, snap.Type)
	assert.Equal(t, []Handle{existing}, snap.Added)
	assert.Equal(t, 1, s.Viewers())

	added := a.Next(vec.Vec3{X: 6}, block.Stone)
	s.AddObject(added)
	s.RemoveObject(existing)
	s.RenderFrame()

	frame := readFrame(t, conn)
	assert.Equal(t, MsgFrame, frame.Type)
	assert.Equal(t, uint64(2), frame.Frame)
	assert.Equal(t, []Handle{added}, frame.Added)
	assert.Equal(t, []uint64{existing.ID}, frame.Removed)
}

func TestWSSceneEmptyFrameNotSent(t *testing.T) {
	s := NewWSScene()
	defer s.Close()

	conn := dialViewer(t, s)
	readFrame(t, conn) // снимок

	s.RenderFrame() // пустой пакет не отправляется
	s.AddObject(Handle{ID: 7})
	s.RenderFrame()

	frame := readFrame(t, conn)
	assert.Equal(t, uint64(2), frame.Frame)
	assert.Len(t, frame.Added, 1)
}

func TestWSSnapshotMatchesPendingBatch(t *testing.T) {
	var a HandleAllocator
	s := NewWSScene()
	defer s.Close()

	old := a.Next(vec.Vec3{X: 1}, block.Dirt)
	s.AddObject(old)
	s.RenderFrame()

	// Пакет ещё не отправлен: old удалён, fresh добавлен
	fresh := a.Next(vec.Vec3{X: 2}, block.Grass)
	s.AddObject(fresh)
	s.RemoveObject(old)

	conn := dialViewer(t, s)
	snap := readFrame(t, conn)
	assert.Equal(t, []Handle{old}, snap.Added)

	s.RenderFrame()
	frame := readFrame(t, conn)
	assert.Equal(t, []Handle{fresh}, frame.Added)
	assert.Equal(t, []uint64{old.ID}, frame.Removed)
}

// applyFrame применяет пакет к состоянию зрителя и проверяет его согласованность
func applyFrame(t *testing.T, state map[uint64]Handle, msg FrameMessage) {
	t.Helper()
	for _, h := range msg.Added {
		_, dup := state[h.ID]
		require.False(t, dup, "объект %d добавлен повторно", h.ID)
		state[h.ID] = h
	}
	for _, id := range msg.Removed {
		_, ok := state[id]
		require.True(t, ok, "удаление неизвестного объекта %d", id)
		delete(state, id)
	}
}

func TestWSViewersStayConsistentUnderConcurrentEdits(t *testing.T) {
	var a HandleAllocator
	s := NewWSScene()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var prev Handle
		for i := 0; i < 150; i++ {
			h := a.Next(vec.Vec3{X: i}, block.Stone)
			s.AddObject(h)
			if i > 0 {
				s.RemoveObject(prev)
			}
			prev = h
			if i%3 == 0 {
				s.RenderFrame()
			}
		}
		s.RenderFrame()
	}()

	var conns []*websocket.Conn
	for i := 0; i < 5; i++ {
		conns = append(conns, dialViewer(t, s))
	}
	<-done

	want := make(map[uint64]Handle)
	for _, h := range s.Objects() {
		want[h.ID] = h
	}

	for _, conn := range conns {
		snap := readFrame(t, conn)
		require.Equal(t, MsgSnapshot, snap.Type)
		state := make(map[uint64]Handle)
		applyFrame(t, state, snap)
		for len(state) != len(want) || !assert.ObjectsAreEqual(want, state) {
			applyFrame(t, state, readFrame(t, conn))
		}
		assert.Equal(t, want, state)
	}
}
