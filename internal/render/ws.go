package render

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/voxel-stream/internal/logging"
)

// Типы сообщений для зрителей
const (
	MsgSnapshot = "snapshot" // Полное состояние сцены при подключении
	MsgFrame    = "frame"    // Изменения за кадр
)

// FrameMessage - пакет изменений сцены, отправляемый зрителям.
// Клиент применяет сначала Added, затем Removed.
type FrameMessage struct {
	Type    string   `json:"type"`
	Frame   uint64   `json:"frame"`
	Added   []Handle `json:"added,omitempty"`
	Removed []uint64 `json:"removed,omitempty"`
}

// viewer - подключённый браузерный клиент
type viewer struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// WSScene хранит сцену в памяти и транслирует изменения зрителям по
// WebSocket. Изменения копятся в пакете и уходят при RenderFrame.
type WSScene struct {
	*Graph

	upgrader websocket.Upgrader
	logger   *logging.Logger

	// mu защищает Graph вместе с пакетом: зритель видит снимок и
	// пакет, согласованные между собой
	mu      sync.Mutex
	added   []Handle
	removed []Handle
	viewers map[*viewer]struct{}
	closed  bool
}

// NewWSScene создаёт сцену с трансляцией
func NewWSScene() *WSScene {
	return &WSScene{
		Graph: NewGraph(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // зритель локальный
			},
		},
		logger:  logging.GetRenderLogger(),
		viewers: make(map[*viewer]struct{}),
	}
}

func (s *WSScene) AddObject(h Handle) {
	s.mu.Lock()
	s.Graph.AddObject(h)
	s.added = append(s.added, h)
	s.mu.Unlock()
}

func (s *WSScene) RemoveObject(h Handle) {
	s.mu.Lock()
	s.Graph.RemoveObject(h)
	s.removed = append(s.removed, h)
	s.mu.Unlock()
}

// RenderFrame отправляет накопленный пакет всем зрителям
func (s *WSScene) RenderFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Graph.RenderFrame()
	if len(s.added) == 0 && len(s.removed) == 0 {
		return
	}
	removed := make([]uint64, len(s.removed))
	for i, h := range s.removed {
		removed[i] = h.ID
	}
	msg := FrameMessage{
		Type:    MsgFrame,
		Frame:   s.Graph.Frames(),
		Added:   s.added,
		Removed: removed,
	}
	s.added, s.removed = nil, nil

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Ошибка сериализации кадра: %v", err)
		return
	}
	for v := range s.viewers {
		select {
		case v.send <- data:
		default:
			// медленный зритель отключается, при переподключении получит снимок
			s.logger.Warn("Зритель %s не успевает, отключаем", v.id)
			s.dropLocked(v)
		}
	}
}

// Viewers возвращает количество подключённых зрителей
func (s *WSScene) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Handler возвращает HTTP-обработчик для подключения зрителей
func (s *WSScene) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("Ошибка апгрейда соединения: %v", err)
			return
		}

		v := &viewer{conn: conn, send: make(chan []byte, 256), id: r.RemoteAddr}

		// Снимок и регистрация под одной блокировкой: пакет следующего
		// кадра не может потерять изменения между ними.
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		snapshot, err := json.Marshal(FrameMessage{
			Type:  MsgSnapshot,
			Frame: s.Graph.Frames(),
			Added: s.snapshotLocked(),
		})
		if err != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
		v.send <- snapshot
		s.viewers[v] = struct{}{}
		s.mu.Unlock()

		s.logger.Info("Зритель подключён: %s", v.id)
		go s.writePump(v)
		go s.readPump(v)
	}
}

// snapshotLocked возвращает сцену на начало текущего пакета: без его
// добавлений и с его удалениями. Следующий кадр применяется к снимку
// без повторов и без неизвестных зрителю ID.
func (s *WSScene) snapshotLocked() []Handle {
	pending := make(map[uint64]struct{}, len(s.added))
	for _, h := range s.added {
		pending[h.ID] = struct{}{}
	}
	objects := s.Graph.Objects()
	out := make([]Handle, 0, len(objects)+len(s.removed))
	for _, h := range objects {
		if _, ok := pending[h.ID]; !ok {
			out = append(out, h)
		}
	}
	for _, h := range s.removed {
		if _, ok := pending[h.ID]; !ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *WSScene) readPump(v *viewer) {
	defer s.drop(v)

	v.conn.SetReadLimit(512)
	v.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Ошибка чтения от зрителя %s: %v", v.id, err)
			}
			return
		}
	}
}

func (s *WSScene) writePump(v *viewer) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case data, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WSScene) drop(v *viewer) {
	s.mu.Lock()
	s.dropLocked(v)
	s.mu.Unlock()
}

func (s *WSScene) dropLocked(v *viewer) {
	if _, ok := s.viewers[v]; !ok {
		return
	}
	delete(s.viewers, v)
	close(v.send)
	s.logger.Info("Зритель отключён: %s", v.id)
}

// Close отключает всех зрителей
func (s *WSScene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for v := range s.viewers {
		s.dropLocked(v)
	}
}
