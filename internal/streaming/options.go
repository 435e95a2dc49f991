package streaming

import (
	"errors"
	"time"
)

// Options задаёт параметры контроллера стриминга
type Options struct {
	Edge   int // Длина ребра чанка в блоках
	Radius int // Радиус стриминга в чанках (метрика Чебышёва)

	// Workers > 0 включает асинхронный режим: генерация идёт в пуле,
	// Advance только ставит задачи и забирает готовые результаты.
	Workers int

	MaxAttempts    int           // Попыток генерации одного чанка до заглушки
	InitialBackoff time.Duration // Первая пауза между попытками (асинхронный режим)
	MaxBackoff     time.Duration // Верхняя граница паузы
	ResultBuffer   int           // Ёмкость канала готовых чанков; 0 - по радиусу
}

// DefaultOptions возвращает параметры по умолчанию: ребро 16, радиус 2
func DefaultOptions() Options {
	return Options{
		Edge:           16,
		Radius:         2,
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// Validate проверяет параметры
func (o Options) Validate() error {
	if o.Edge <= 0 {
		return errors.New("streaming: edge должен быть положительным")
	}
	if o.Radius <= 0 {
		return errors.New("streaming: radius должен быть положительным")
	}
	if o.Workers < 0 {
		return errors.New("streaming: workers не может быть отрицательным")
	}
	return nil
}

func (o Options) maxAttempts() int {
	if o.MaxAttempts < 1 {
		return 1
	}
	return o.MaxAttempts
}

func (o Options) resultBuffer() int {
	if o.ResultBuffer > 0 {
		return o.ResultBuffer
	}
	side := 2*o.Radius + 1
	return 2 * side * side
}
