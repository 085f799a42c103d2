package vad

import "math"

// fft computes an in-place iterative radix-2 Cooley-Tukey FFT over re/im.
// len(re) == len(im) must be a power of two.
func fft(re, im []float64) {
	n := len(re)
	if n < 2 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				i, j := start+k, start+k+half
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j] = re[i] - tRe
				im[j] = im[i] - tIm
				re[i] += tRe
				im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// VoiceBandFraction returns the fraction of spectral energy between loHz and
// hiHz in the given mono window. A Hann window is applied before the
// transform to limit leakage from the window edges.
func VoiceBandFraction(samples []float32, sampleRate int, loHz, hiHz float64) float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0
	}

	n := nextPow2(len(samples))
	re := make([]float64, n)
	im := make([]float64, n)
	for i, s := range samples {
		// Hann window.
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(samples)-1)))
		re[i] = float64(s) * w
	}
	fft(re, im)

	binHz := float64(sampleRate) / float64(n)
	loBin := int(loHz / binHz)
	hiBin := int(hiHz / binHz)
	if hiBin > n/2 {
		hiBin = n / 2
	}

	var total, band float64
	for k := 1; k <= n/2; k++ { // skip DC
		e := re[k]*re[k] + im[k]*im[k]
		total += e
		if k >= loBin && k <= hiBin {
			band += e
		}
	}
	if total == 0 {
		return 0
	}
	return band / total
}
