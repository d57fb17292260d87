package transform

import (
	"encoding/base64"
	"fmt"

	"imgopt/internal/descriptor"
)

// blurSVG wraps the tiny webp raster in a minimal SVG document that blurs
// it with a Gaussian filter. The raster rides inside as a base64 data URI,
// so the placeholder is a single self-contained file. The alpha clamp in
// feComponentTransfer keeps the blur from feathering the edges transparent.
func blurSVG(webpBytes []byte, b descriptor.Blur) string {
	dataURI := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(webpBytes)

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="100%%" height="100%%"
     viewBox="0 0 %d %d" preserveAspectRatio="none">
  <filter id="b" filterUnits="userSpaceOnUse" color-interpolation-filters="sRGB">
    <feGaussianBlur stdDeviation="%d" edgeMode="duplicate"/>
    <feComponentTransfer>
      <feFuncA type="discrete" tableValues="1 1"/>
    </feComponentTransfer>
  </filter>
  <image filter="url(#b)" width="100%%" height="100%%" href="%s"/>
</svg>`, b.SVGWidth, b.SVGHeight, b.Sigma, dataURI)
}
