package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// LoggerManager хранит логгеры компонентов. Один логгер на компонент,
// уровни всех логгеров меняются вместе с Configure.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

func newLoggerManager() *LoggerManager {
	return &LoggerManager{loggers: make(map[string]*Logger)}
}

// GetLogger возвращает логгер компонента, создавая его с текущими Options
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return l, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}

	l, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger возвращает логгер компонента; если файл логов открыть
// не удалось, логгер пишет только в консоль.
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err == nil {
		return l
	}

	opts := currentOptions()
	fallback := &Logger{
		component:       component,
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: opts.consoleLevelFor(component),
		minFileLevel:    opts.FileLevel,
	}
	fallback.Warn("Файл логов недоступен, только консоль: %v", err)

	lm.mu.Lock()
	lm.loggers[component] = fallback
	lm.mu.Unlock()
	return fallback
}

// relevel применяет уровни из opts ко всем созданным логгерам
func (lm *LoggerManager) relevel(opts Options) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	for component, l := range lm.loggers {
		l.SetLevels(opts.consoleLevelFor(component), opts.FileLevel)
	}
}

// SetLogLevel меняет уровни одного компонента до следующего Configure
func (lm *LoggerManager) SetLogLevel(component string, console, file LogLevel) error {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}
	l.SetLevels(console, file)
	return nil
}

// Components возвращает отсортированные имена компонентов
func (lm *LoggerManager) Components() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	out := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CloseAll закрывает файлы всех логгеров и очищает реестр
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetStreamingLogger() *Logger { return GetComponentLogger("streaming") }
func GetTerrainLogger() *Logger   { return GetComponentLogger("terrain") }
func GetStorageLogger() *Logger   { return GetComponentLogger("storage") }
func GetRenderLogger() *Logger    { return GetComponentLogger("render") }
func GetEventBusLogger() *Logger  { return GetComponentLogger("eventbus") }
