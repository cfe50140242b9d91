// Package color derives stable colours from seed strings.
package color

import (
	"fmt"
	"strconv"
)

// ForSeed generates a consistent hex colour (without '#') for a seed string.
// The same seed always gives the same colour. Colours share a fixed
// saturation and lightness so any of them reads well behind text.
func ForSeed(seed string) string {
	h := 0
	for _, c := range seed {
		h = 31*h + int(c)
	}
	hue := float64(((h % 360) + 360) % 360)

	r, g, b := hslToRGB(hue, 0.4, 0.65)
	return fmt.Sprintf("%02X%02X%02X", r, g, b)
}

// TextOn returns a foreground hex colour that contrasts with background.
func TextOn(background string) string {
	v, err := strconv.ParseUint(background, 16, 32)
	if err != nil || len(background) != 6 {
		return "FFFFFF"
	}
	r, g, b := float64(v>>16&0xFF), float64(v>>8&0xFF), float64(v&0xFF)

	// Rec. 601 luma.
	if 0.299*r+0.587*g+0.114*b > 150 {
		return "1F1F1F"
	}
	return "FFFFFF"
}

// hslToRGB converts HSL color space to RGB.
// h: hue (0-360), s: saturation (0-1), l: lightness (0-1)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64

	if s == 0 {
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	r = uint8(r1 * 255)
	g = uint8(g1 * 255)
	b = uint8(b1 * 255)
	return
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
