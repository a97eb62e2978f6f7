// Package slicer launches and supervises the external 3D Slicer process.
// It runs the tool headless, enforces a wall-clock timeout with process
// group cleanup, and classifies the outcome from the script's JSON marker
// files rather than trusting exit status alone.
package slicer
