package input

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Параметры управления наблюдателем (на кадр)
const (
	Gravity          = -0.015
	JumpPower        = 0.35
	GroundLevel      = 1.0
	MoveSpeed        = 0.05
	MouseSensitivity = 0.002
	PitchLimit       = 1.5
	EyeHeight        = 1.6
)

// Key - клавиша управления
type Key uint8

const (
	KeyForward Key = 1 << iota
	KeyBack
	KeyLeft
	KeyRight
	KeyJump
)

// Pose - положение и ориентация наблюдателя
type Pose struct {
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
}

// Forward возвращает горизонтальное направление взгляда
func (p Pose) Forward() mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(p.Yaw), 0, math.Cos(p.Yaw)}
}

// Right возвращает направление вправо от взгляда
func (p Pose) Right() mgl64.Vec3 {
	a := p.Yaw + math.Pi/2
	return mgl64.Vec3{math.Sin(a), 0, math.Cos(a)}
}

// Eye возвращает позицию камеры
func (p Pose) Eye() mgl64.Vec3 {
	return p.Position.Add(mgl64.Vec3{0, EyeHeight, 0})
}

// State - ввод за один кадр
type State struct {
	Keys   Key
	MouseX float64 // Смещение мыши по X
	MouseY float64 // Смещение мыши по Y
}

// Pressed проверяет, нажата ли клавиша
func (s State) Pressed(k Key) bool {
	return s.Keys&k != 0
}

// Controller интегрирует ввод в позу наблюдателя: обзор мышью,
// гравитация, прыжок и движение WASD относительно yaw.
type Controller struct {
	pose      Pose
	velocityY float64
	onGround  bool
}

// NewController создаёт контроллер с наблюдателем в точке start
func NewController(start mgl64.Vec3) *Controller {
	return &Controller{pose: Pose{Position: start}}
}

// Pose возвращает текущую позу
func (c *Controller) Pose() Pose {
	return c.pose
}

// OnGround сообщает, стоит ли наблюдатель на земле
func (c *Controller) OnGround() bool {
	return c.onGround
}

// Step применяет ввод одного кадра и возвращает новую позу
func (c *Controller) Step(s State) Pose {
	c.pose.Yaw -= s.MouseX * MouseSensitivity
	c.pose.Pitch -= s.MouseY * MouseSensitivity
	c.pose.Pitch = mgl64.Clamp(c.pose.Pitch, -PitchLimit, PitchLimit)

	c.velocityY += Gravity
	c.pose.Position[1] += c.velocityY
	if c.pose.Position[1] <= GroundLevel {
		c.pose.Position[1] = GroundLevel
		c.velocityY = 0
		c.onGround = true
	}

	if s.Pressed(KeyJump) && c.onGround {
		c.velocityY = JumpPower
		c.onGround = false
	}

	forward, right := c.pose.Forward(), c.pose.Right()
	if s.Pressed(KeyForward) {
		c.pose.Position = c.pose.Position.Add(forward.Mul(MoveSpeed))
	}
	if s.Pressed(KeyBack) {
		c.pose.Position = c.pose.Position.Sub(forward.Mul(MoveSpeed))
	}
	if s.Pressed(KeyLeft) {
		c.pose.Position = c.pose.Position.Sub(right.Mul(MoveSpeed))
	}
	if s.Pressed(KeyRight) {
		c.pose.Position = c.pose.Position.Add(right.Mul(MoveSpeed))
	}

	return c.pose
}
