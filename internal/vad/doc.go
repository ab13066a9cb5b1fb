// Package vad provides an offline energy based Voice Activity Detector.
// It frames the signal, models normalized frame energy with a gaussian mixture
// trained by EM and thresholds the posterior of the lowest-energy component,
// then smooths the sample mask with morphological closing and opening.
package vad
