// Package diff turns an aligned image pair into a difference map and a set
// of severity-filtered candidate regions. Detection is deliberately split
// from filtering: regions are always found the same way, and sensitivity
// only decides which of them survive, so the reported-issue count grows
// monotonically with sensitivity.
package diff

import (
	"image"

	"gocv.io/x/gocv"
)

// SSIM constants for 8-bit images: (k*L)^2 with k1=0.01, k2=0.03, L=255.
const (
	ssimC1 = 6.5025
	ssimC2 = 58.5225
)

const ssimWindow = 11

// SSIM computes the structural similarity between two equally sized
// grayscale images using an 11x11 Gaussian window. It returns the mean score
// in [0,1] and a dissimilarity map scaled to [0,255], where brighter means
// more different.
func SSIM(a, b gocv.Mat) (float64, gocv.Mat) {
	i1 := gocv.NewMat()
	defer i1.Close()
	i2 := gocv.NewMat()
	defer i2.Close()
	a.ConvertTo(&i1, gocv.MatTypeCV32F)
	b.ConvertTo(&i2, gocv.MatTypeCV32F)

	mu1 := gaussian(i1)
	defer mu1.Close()
	mu2 := gaussian(i2)
	defer mu2.Close()

	mu1Sq := multiply(mu1, mu1)
	defer mu1Sq.Close()
	mu2Sq := multiply(mu2, mu2)
	defer mu2Sq.Close()
	mu1Mu2 := multiply(mu1, mu2)
	defer mu1Mu2.Close()

	sigma1Sq := blurredMoment(i1, i1, mu1Sq)
	defer sigma1Sq.Close()
	sigma2Sq := blurredMoment(i2, i2, mu2Sq)
	defer sigma2Sq.Close()
	sigma12 := blurredMoment(i1, i2, mu1Mu2)
	defer sigma12.Close()

	// (2*mu1*mu2 + C1) * (2*sigma12 + C2)
	t1 := mu1Mu2.Clone()
	defer t1.Close()
	t1.MultiplyFloat(2)
	t1.AddFloat(ssimC1)
	t2 := sigma12.Clone()
	defer t2.Close()
	t2.MultiplyFloat(2)
	t2.AddFloat(ssimC2)
	numerator := multiply(t1, t2)
	defer numerator.Close()

	// (mu1^2 + mu2^2 + C1) * (sigma1^2 + sigma2^2 + C2)
	d1 := add(mu1Sq, mu2Sq)
	defer d1.Close()
	d1.AddFloat(ssimC1)
	d2 := add(sigma1Sq, sigma2Sq)
	defer d2.Close()
	d2.AddFloat(ssimC2)
	denominator := multiply(d1, d2)
	defer denominator.Close()

	ssimMap := gocv.NewMat()
	defer ssimMap.Close()
	gocv.Divide(numerator, denominator, &ssimMap)

	score := ssimMap.Mean().Val1

	// 255*(1 - ssim), saturated into an 8-bit map.
	dissim := ssimMap.Clone()
	defer dissim.Close()
	dissim.MultiplyFloat(-255)
	dissim.AddFloat(255)

	diffMap := gocv.NewMat()
	dissim.ConvertTo(&diffMap, gocv.MatTypeCV8U)
	return score, diffMap
}

// blurredMoment computes blur(a*b) - mu, the windowed (co)variance term.
func blurredMoment(a, b, mu gocv.Mat) gocv.Mat {
	product := multiply(a, b)
	defer product.Close()
	blurred := gaussian(product)
	defer blurred.Close()

	dst := gocv.NewMat()
	gocv.Subtract(blurred, mu, &dst)
	return dst
}

func gaussian(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Point{X: ssimWindow, Y: ssimWindow}, 1.5, 1.5, gocv.BorderDefault)
	return dst
}

func multiply(a, b gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Multiply(a, b, &dst)
	return dst
}

func add(a, b gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Add(a, b, &dst)
	return dst
}
