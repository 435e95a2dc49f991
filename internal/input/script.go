package input

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Segment - отрезок сценария: один и тот же ввод на протяжении Frames кадров
type Segment struct {
	Frames int     `yaml:"frames"`
	Keys   string  `yaml:"keys"` // Например "w", "wd", "w jump"
	MouseX float64 `yaml:"mouse_x"`
	MouseY float64 `yaml:"mouse_y"`
}

// Script - заранее записанный ввод для безголового прогона
type Script struct {
	Segments []Segment `yaml:"segments"`
	Loop     bool      `yaml:"loop"`

	states []State
	frame  int
}

// ParseKeys разбирает строку клавиш: w a s d и jump (или пробел)
func ParseKeys(s string) (Key, error) {
	var k Key
	rest := strings.ToLower(s)
	if strings.Contains(rest, "jump") {
		k |= KeyJump
		rest = strings.ReplaceAll(rest, "jump", "")
	}
	for _, r := range rest {
		switch r {
		case 'w':
			k |= KeyForward
		case 's':
			k |= KeyBack
		case 'a':
			k |= KeyLeft
		case 'd':
			k |= KeyRight
		case ' ', ',':
		default:
			return 0, fmt.Errorf("неизвестная клавиша %q", r)
		}
	}
	return k, nil
}

// NewScript собирает сценарий из отрезков
func NewScript(loop bool, segments ...Segment) (*Script, error) {
	s := &Script{Segments: segments, Loop: loop}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScript читает сценарий из YAML-файла
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение сценария: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("разбор сценария %s: %w", path, err)
	}
	if err := s.compile(); err != nil {
		return nil, fmt.Errorf("сценарий %s: %w", path, err)
	}
	return &s, nil
}

// DefaultScript - прогулка по квадрату с поворотами и прыжком
func DefaultScript() *Script {
	s, _ := NewScript(true,
		Segment{Frames: 600, Keys: "w"},
		Segment{Frames: 20, Keys: "w jump"},
		Segment{Frames: 30, MouseX: 26}, // поворот примерно на 90 градусов
		Segment{Frames: 600, Keys: "w"},
		Segment{Frames: 30, MouseX: 26},
		Segment{Frames: 600, Keys: "wd"},
		Segment{Frames: 30, MouseX: 26},
		Segment{Frames: 600, Keys: "w"},
	)
	return s
}

func (s *Script) compile() error {
	s.states = s.states[:0]
	for i, seg := range s.Segments {
		if seg.Frames <= 0 {
			return fmt.Errorf("отрезок %d: frames должен быть положительным", i)
		}
		keys, err := ParseKeys(seg.Keys)
		if err != nil {
			return fmt.Errorf("отрезок %d: %w", i, err)
		}
		st := State{Keys: keys, MouseX: seg.MouseX, MouseY: seg.MouseY}
		for f := 0; f < seg.Frames; f++ {
			s.states = append(s.states, st)
		}
	}
	s.frame = 0
	return nil
}

// Len возвращает длину сценария в кадрах
func (s *Script) Len() int {
	return len(s.states)
}

// Next возвращает ввод следующего кадра. По окончании сценария без Loop
// возвращается пустой ввод и false.
func (s *Script) Next() (State, bool) {
	if len(s.states) == 0 {
		return State{}, false
	}
	if s.frame >= len(s.states) {
		if !s.Loop {
			return State{}, false
		}
		s.frame = 0
	}
	st := s.states[s.frame]
	s.frame++
	return st, true
}
