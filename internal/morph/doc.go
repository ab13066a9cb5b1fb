// Package morph implements flat one-dimensional binary morphology.
//
// A structuring element of size n covers offsets [-n/2, n-1-n/2] around each
// sample. Samples outside the mask do not take part: erosion treats them as
// set and dilation as unset. With that border rule dilation and erosion form
// an adjunction, so Open and Close are idempotent and the result does not
// shrink or grow artificially at the ends of the mask.
package morph
