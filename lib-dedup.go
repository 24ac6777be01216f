package main

import (
	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// dupAuditor flags originals of one class that are perceptually identical to
// an earlier original of the same class. It only reports; generation does not
// change because of it.
type dupAuditor struct {
	distance int
	hashes   []*goimagehash.ImageHash
}

// newDupAuditor returns nil when distance is not positive, which disables
// auditing.
func newDupAuditor(distance int) *dupAuditor {
	if distance <= 0 {
		return nil
	}
	return &dupAuditor{distance: distance}
}

// isDuplicate returns true if img is within the Hamming distance of a
// previously seen image. If hashing fails for any reason, the image is
// treated as unique. Unique images are remembered for later comparisons.
func (d *dupAuditor) isDuplicate(img gocv.Mat) bool {
	if d == nil {
		return false
	}
	rgba, err := img.ToImage()
	if err != nil {
		return false
	}
	hash, err := goimagehash.DifferenceHash(rgba)
	if err != nil {
		return false
	}

	for _, h := range d.hashes {
		dist, err := hash.Distance(h)
		if err == nil && dist < d.distance {
			return true
		}
	}

	d.hashes = append(d.hashes, hash)
	return false
}
