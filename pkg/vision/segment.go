package vision

import (
	"context"
	"image"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// hsvGrid holds the HSV colour of every pixel inside the content rectangle
type hsvGrid struct {
	w, h int
	px   []types.HSV
}

func (g *hsvGrid) at(x, y int) types.HSV {
	return g.px[y*g.w+x]
}

func buildHSVGrid(ctx context.Context, img *image.NRGBA, content image.Rectangle) (*hsvGrid, error) {
	w, h := content.Dx(), content.Dy()
	grid := &hsvGrid{w: w, h: h, px: make([]types.HSV, w*h)}
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := img.PixOffset(content.Min.X, content.Min.Y+y)
		for x := 0; x < w; x++ {
			grid.px[y*w+x] = toHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			i += 4
		}
	}
	return grid, nil
}

type component struct {
	minX, minY, maxX, maxY int
	area                   int
	color                  hueAccumulator
}

// segment masks the grid with a profile and returns its 4-connected components
// in scan order.
func segment(ctx context.Context, grid *hsvGrid, p Profile, minArea int) ([]component, error) {
	mask := make([]bool, grid.w*grid.h)
	for y := 0; y < grid.h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < grid.w; x++ {
			mask[y*grid.w+x] = p.Matches(grid.at(x, y))
		}
	}

	visited := make([]bool, len(mask))
	var comps []component
	queue := make([]int, 0, 256)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := component{minX: grid.w, minY: grid.h, maxX: -1, maxY: -1}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%grid.w, idx/grid.w

			c.area++
			c.color.add(grid.px[idx])
			c.minX = min(c.minX, x)
			c.minY = min(c.minY, y)
			c.maxX = max(c.maxX, x)
			c.maxY = max(c.maxY, y)

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= grid.w || ny >= grid.h {
					continue
				}
				ni := ny*grid.w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}

		if c.area >= minArea {
			comps = append(comps, c)
		}
	}
	return comps, nil
}

func (c component) box() types.Box {
	return types.Box{X: c.minX, Y: c.minY, Width: c.maxX - c.minX + 1, Height: c.maxY - c.minY + 1}
}

func (c component) shape(frameW, frameH int) types.Shape {
	b := c.box()
	return types.Shape{
		PixelArea:     c.area,
		FrameWidth:    frameW,
		FrameHeight:   frameH,
		Fill:          types.Clamp01(float64(c.area) / float64(b.Area())),
		AspectRatio:   float64(b.Width) / float64(b.Height),
		TouchesBorder: c.minX == 0 || c.minY == 0 || c.maxX == frameW-1 || c.maxY == frameH-1,
	}
}
