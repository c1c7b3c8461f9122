package main

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/plus3/scripthost/scene"
	"github.com/plus3/scripthost/script/debugui"
	debugui_ebiten "github.com/plus3/scripthost/script/debugui/ebiten"
)

const (
	unitPixels = 40
	objectSize = 24
)

var (
	background     = color.RGBA{245, 245, 240, 255}
	activeColor    = color.RGBA{179, 229, 252, 255}
	inactiveColor  = color.RGBA{200, 200, 200, 255}
	objectOutlines = color.RGBA{100, 100, 100, 255}
)

// runWindow opens the Ebiten window with the inspector overlay and blocks
// until it is closed.
func runWindow(h *Host, title string, width, height int) error {
	backend := debugui_ebiten.NewImguiBackend(title, width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	id, err := h.Scene().Create("debugui", mgl64.Vec3{})
	if err != nil {
		return err
	}
	if _, err := h.Controller().Spawn(id, "overlay", debugui.NewOverlay()); err != nil {
		return err
	}

	game := &debugui_ebiten.Game{
		Controller: h.Controller(),
		Backend:    backend,
		DrawScene:  func(screen *ebiten.Image) { drawScene(screen, h.Scene()) },
	}
	return ebiten.RunGame(game)
}

// drawScene draws every object as a square around the screen centre, with
// +y pointing up.
func drawScene(screen *ebiten.Image, s *scene.Scene) {
	screen.Fill(background)
	bounds := screen.Bounds()
	cx, cy := float32(bounds.Dx())/2, float32(bounds.Dy())/2

	for _, obj := range s.Objects() {
		if obj.Name == "debugui" {
			continue
		}
		x := cx + float32(obj.Position.X())*unitPixels - objectSize/2
		y := cy - float32(obj.Position.Y())*unitPixels - objectSize/2
		fill := activeColor
		if !obj.Active {
			fill = inactiveColor
		}
		vector.DrawFilledRect(screen, x, y, objectSize, objectSize, fill, false)
		vector.StrokeRect(screen, x, y, objectSize, objectSize, 1, objectOutlines, false)
		ebitenutil.DebugPrintAt(screen, obj.Name, int(x), int(y)+objectSize+2)
	}
}
