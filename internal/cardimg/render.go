package cardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Prompt is what gets drawn: the black card and, once a round is decided, the winning answer.
type Prompt struct {
	Black   string
	Pick    int
	Answers []string
	Footer  string
}

const (
	cardWidth   = 240
	cardHeight  = 320
	margin      = 24
	gap         = 20
	padding     = 20
	lineSpacing = 5
	footerSpace = 44
	maxAnswers  = 3
)

var (
	canvasColor     = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	blackCardText   = color.NRGBA{R: 244, G: 244, B: 244, A: 255}
	whiteCardText   = color.NRGBA{R: 18, G: 18, B: 18, A: 255}
	pickBadgeColor  = color.NRGBA{R: 244, G: 244, B: 244, A: 255}
	pickBadgeText   = color.NRGBA{R: 18, G: 18, B: 18, A: 255}
	footerTextColor = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

// Render draws the prompt as a row of cards and returns PNG bytes.
func Render(p Prompt) ([]byte, error) {
	black := strings.TrimSpace(p.Black)
	if black == "" {
		return nil, fmt.Errorf("black card text is empty")
	}
	if len(p.Answers) > maxAnswers {
		return nil, fmt.Errorf("too many answers: %d", len(p.Answers))
	}

	cards := 1 + len(p.Answers)
	width := margin*2 + cards*cardWidth + (cards-1)*gap
	height := margin*2 + cardHeight
	if strings.TrimSpace(p.Footer) != "" {
		height += footerSpace
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(canvasColor), image.Point{}, imagedraw.Src)

	face := basicfont.Face7x13
	origin := image.Point{X: margin, Y: margin}
	if err := drawCard(img, face, shapeBlack, origin, displayBlank(black), blackCardText); err != nil {
		return nil, err
	}
	if p.Pick > 1 {
		drawPickBadge(img, face, origin, p.Pick)
	}
	for i, answer := range p.Answers {
		at := image.Point{X: margin + (i+1)*(cardWidth+gap), Y: margin}
		if err := drawCard(img, face, shapeWhite, at, strings.TrimSpace(answer), whiteCardText); err != nil {
			return nil, err
		}
	}
	if footer := strings.TrimSpace(p.Footer); footer != "" {
		rect := image.Rect(margin, margin+cardHeight+8, width-margin, height-8)
		drawer := &font.Drawer{Dst: img, Face: face}
		drawCenteredString(drawer, rect, truncateWithEllipsis(face, footer, rect.Dx()), footerTextColor)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func drawCard(img *image.RGBA, face font.Face, s shape, at image.Point, text string, clr color.Color) error {
	outline, err := renderShape(s, cardWidth, cardHeight)
	if err != nil {
		return err
	}
	rect := image.Rect(at.X, at.Y, at.X+cardWidth, at.Y+cardHeight)
	imagedraw.Draw(img, rect, outline, image.Point{}, imagedraw.Over)

	textRect := image.Rect(rect.Min.X+padding, rect.Min.Y+padding, rect.Max.X-padding, rect.Max.Y-footerSpace)
	drawWrapped(img, face, textRect, text, clr)
	return nil
}

func drawPickBadge(img *image.RGBA, face font.Face, card image.Point, pick int) {
	badge := image.Rect(card.X+cardWidth-padding-64, card.Y+cardHeight-padding-20, card.X+cardWidth-padding, card.Y+cardHeight-padding)
	drawRoundedPanel(img, badge, 8, pickBadgeColor)
	drawer := &font.Drawer{Dst: img, Face: face}
	drawCenteredString(drawer, badge, fmt.Sprintf("PICK %d", pick), pickBadgeText)
}

func drawWrapped(img *image.RGBA, face font.Face, rect image.Rectangle, text string, clr color.Color) {
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil() + lineSpacing
	maxLines := rect.Dy() / lineHeight
	if maxLines <= 0 {
		return
	}
	lines := wrapText(face, text, rect.Dx())
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = truncateWithEllipsis(face, lines[maxLines-1]+"...", rect.Dx())
	}
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(clr), Face: face}
	baseline := rect.Min.Y + metrics.Ascent.Ceil()
	for _, line := range lines {
		drawer.Dot = fixed.P(rect.Min.X, baseline)
		drawer.DrawString(line)
		baseline += lineHeight
	}
}

// displayBlank widens "_" placeholders so they read as blanks on the card.
func displayBlank(text string) string {
	return strings.ReplaceAll(text, "_", "_____")
}

// wrapText breaks text on spaces so that each line fits maxWidth; words longer than a line are split.
func wrapText(face font.Face, text string, maxWidth int) []string {
	drawer := font.Drawer{Face: face}
	fits := func(s string) bool { return drawer.MeasureString(s).Round() <= maxWidth }
	if maxWidth <= 0 {
		return nil
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		current := ""
		for _, word := range strings.Fields(paragraph) {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if fits(candidate) {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = ""
			for !fits(word) {
				head, rest := splitToFit(word, fits)
				lines = append(lines, head)
				word = rest
			}
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

func splitToFit(word string, fits func(string) bool) (string, string) {
	runes := []rune(word)
	n := len(runes) - 1
	for n > 1 && !fits(string(runes[:n])) {
		n--
	}
	if n < 1 {
		n = 1
	}
	return string(runes[:n]), string(runes[n:])
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 || face == nil {
		return trimmed
	}

	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}

	ellipsis := "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}

	runes := []rune(strings.TrimSuffix(trimmed, ellipsis))
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if drawer == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	radius = min(max(radius, 0), rect.Dx()/2, rect.Dy()/2)
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	// horizontal band plus the two side strips; corners are filled with discs
	core := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	imagedraw.Draw(img, core, fill, image.Point{}, imagedraw.Over)
	left := image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius)
	imagedraw.Draw(img, left, fill, image.Point{}, imagedraw.Over)
	right := image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius)
	imagedraw.Draw(img, right, fill, image.Point{}, imagedraw.Over)

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, center := range corners {
		drawDisc(img, center, radius, clr)
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			p := image.Point{X: center.X + x, Y: center.Y + y}
			if p.In(img.Bounds()) {
				img.Set(p.X, p.Y, clr)
			}
		}
	}
}
