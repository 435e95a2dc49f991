package app

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/voxel-stream/internal/input"
	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/streaming"
)

// InputSource поставляет ввод для очередного кадра
type InputSource interface {
	Next() (input.State, bool)
}

// Session связывает ввод, стриминг мира и сцену. Всё состояние мира
// принадлежит сессии; кадры выполняются последовательно.
type Session struct {
	input    *input.Controller
	source   InputSource
	streamer *streaming.Controller
	scene    render.Scene
	logger   *logging.Logger

	frames uint64
}

// NewSession создаёт сессию. source может быть nil: тогда наблюдатель
// стоит на месте и подчиняется только гравитации.
func NewSession(ctrl *input.Controller, source InputSource, streamer *streaming.Controller, scene render.Scene) *Session {
	return &Session{
		input:    ctrl,
		source:   source,
		streamer: streamer,
		scene:    scene,
		logger:   logging.GetComponentLogger("app"),
	}
}

// Frame выполняет один кадр: ввод, стриминг, отрисовка.
// Возвращает false, когда сценарий ввода закончился.
func (s *Session) Frame() bool {
	var st input.State
	more := true
	if s.source != nil {
		st, more = s.source.Next()
	}

	pose := s.input.Step(st)
	s.streamer.Advance(pose.Position)
	s.scene.RenderFrame()
	s.frames++
	return more
}

// Frames возвращает количество выполненных кадров
func (s *Session) Frames() uint64 {
	return s.frames
}

// Pose возвращает позу наблюдателя
func (s *Session) Pose() input.Pose {
	return s.input.Pose()
}

// Streamer возвращает контроллер стриминга
func (s *Session) Streamer() *streaming.Controller {
	return s.streamer
}

// Run выполняет кадры с частотой fps, пока не отменён ctx, не закончился
// сценарий или не выполнено maxFrames кадров (0 - без ограничения).
// fps <= 0 выполняет кадры без пауз.
func (s *Session) Run(ctx context.Context, fps int, maxFrames uint64) error {
	s.logger.Info("Запуск цикла кадров: %d fps", fps)

	var tick <-chan time.Time
	if fps > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	for maxFrames == 0 || s.frames < maxFrames {
		if tick != nil {
			select {
			case <-ctx.Done():
				return s.stopped(ctx.Err())
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return s.stopped(err)
		}

		if !s.Frame() {
			s.logger.Info("Сценарий ввода завершён после %d кадров", s.frames)
			return nil
		}
	}
	return nil
}

func (s *Session) stopped(err error) error {
	s.logger.Info("Цикл кадров остановлен после %d кадров", s.frames)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
